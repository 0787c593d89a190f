// Package api exposes the tutor conversations over a small JSON HTTP API.
package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/xaenox/tutor-bot/internal/conversation"
	"go.uber.org/zap"
)

type Server struct {
	app    *fiber.App
	logger *zap.Logger
}

func New(registry *conversation.Registry, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "tutor-bot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	NewChatHandler(registry).RegisterRoutes(v1)

	return &Server{app: app, logger: logger}
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP API listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				zap.Error(err),
				zap.String("method", ctx.Method()),
				zap.String("path", ctx.Path()))
		}
		return ctx.Status(code).JSON(fiber.Map{"error": message})
	}
}
