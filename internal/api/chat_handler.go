package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xaenox/tutor-bot/internal/conversation"
	"github.com/xaenox/tutor-bot/internal/study"
)

type ChatHandler struct {
	registry *conversation.Registry
}

func NewChatHandler(registry *conversation.Registry) *ChatHandler {
	return &ChatHandler{registry: registry}
}

func (h *ChatHandler) RegisterRoutes(r fiber.Router) {
	o := r.Group("/owners/:owner")

	o.Get("/messages", h.ListMessages)
	o.Post("/messages", h.SubmitMessage)
	o.Put("/messages/:id", h.EditMessage)
	o.Delete("/messages/:id", h.DeleteMessage)

	o.Get("/sessions", h.ListSessions)
	o.Post("/sessions", h.NewSession)
	o.Delete("/sessions", h.DeleteAllSessions)
	o.Post("/sessions/:id/load", h.LoadSession)
	o.Delete("/sessions/:id", h.DeleteSession)

	o.Get("/export", h.Export)
	o.Get("/stats", h.Stats)
	o.Get("/quiz", h.Quiz)
	o.Post("/quiz/score", h.ScoreQuiz)

	o.Get("/bookmarks", h.ListBookmarks)
	o.Post("/bookmarks/:messageID", h.ToggleBookmark)
	o.Delete("/bookmarks", h.ClearBookmarks)
	o.Delete("/bookmarks/:id", h.DeleteBookmark)

	o.Get("/flashcards", h.ListFlashcards)
	o.Post("/flashcards/:messageID", h.CreateFlashcard)
	o.Post("/flashcards/:id/review", h.ReviewFlashcard)
	o.Post("/flashcards/:id/mastered", h.ToggleFlashcardMastered)
	o.Delete("/flashcards/:id", h.DeleteFlashcard)
}

type messageRequest struct {
	Text string `json:"text"`
}

func (h *ChatHandler) controller(ctx *fiber.Ctx) *conversation.Controller {
	return h.registry.Get(ctx.UserContext(), ctx.Params("owner"))
}

// toHTTPError maps domain errors onto status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrNotReady):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, study.ErrMessageNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, study.ErrNoQuestion):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}

func (h *ChatHandler) ListMessages(ctx *fiber.Ctx) error {
	return ctx.JSON(h.controller(ctx).Messages())
}

func (h *ChatHandler) SubmitMessage(ctx *fiber.Ctx) error {
	var req messageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	reply, err := h.controller(ctx).Submit(ctx.UserContext(), req.Text)
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(reply)
}

func (h *ChatHandler) EditMessage(ctx *fiber.Ctx) error {
	var req messageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	reply, edited, err := h.controller(ctx).EditMessage(ctx.UserContext(), ctx.Params("id"), req.Text)
	if err != nil {
		return toHTTPError(err)
	}
	if !edited {
		return fiber.NewError(fiber.StatusNotFound, "no user message with that id")
	}
	return ctx.JSON(reply)
}

func (h *ChatHandler) DeleteMessage(ctx *fiber.Ctx) error {
	if !h.controller(ctx).DeleteMessage(ctx.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "message not found")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) ListSessions(ctx *fiber.Ctx) error {
	return ctx.JSON(h.controller(ctx).Sessions())
}

func (h *ChatHandler) NewSession(ctx *fiber.Ctx) error {
	c := h.controller(ctx)
	c.NewSession(ctx.UserContext())
	return ctx.Status(fiber.StatusCreated).JSON(c.Session())
}

func (h *ChatHandler) LoadSession(ctx *fiber.Ctx) error {
	c := h.controller(ctx)
	if !c.LoadSession(ctx.UserContext(), ctx.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return ctx.JSON(c.Session())
}

func (h *ChatHandler) DeleteSession(ctx *fiber.Ctx) error {
	if !h.controller(ctx).DeleteSession(ctx.UserContext(), ctx.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) DeleteAllSessions(ctx *fiber.Ctx) error {
	h.controller(ctx).DeleteAllSessions(ctx.UserContext())
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) Export(ctx *fiber.Ctx) error {
	c := h.controller(ctx)
	if len(c.Messages()) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no messages to export")
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", conversation.ExportFileName(time.Now())))
	return ctx.SendString(c.Export())
}

func (h *ChatHandler) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(h.controller(ctx).Statistics(ctx.UserContext()))
}

func (h *ChatHandler) Quiz(ctx *fiber.Ctx) error {
	questions, err := h.controller(ctx).Quiz(ctx.Query("subject"), ctx.QueryInt("count", study.DefaultQuizLength))
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(questions)
}

// ScoreQuiz grades answers against questions sent back by the client.
func (h *ChatHandler) ScoreQuiz(ctx *fiber.Ctx) error {
	var req struct {
		Questions []struct {
			CorrectAnswer int `json:"correct_answer"`
		} `json:"questions"`
		Answers []int `json:"answers"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	correct := make([]int, len(req.Questions))
	for i, q := range req.Questions {
		correct[i] = q.CorrectAnswer
	}
	return ctx.JSON(study.ScoreAnswers(correct, req.Answers))
}

func (h *ChatHandler) ListBookmarks(ctx *fiber.Ctx) error {
	return ctx.JSON(h.controller(ctx).Bookmarks())
}

func (h *ChatHandler) ToggleBookmark(ctx *fiber.Ctx) error {
	on, err := h.controller(ctx).ToggleBookmark(ctx.UserContext(), ctx.Params("messageID"))
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.JSON(fiber.Map{"bookmarked": on})
}

func (h *ChatHandler) DeleteBookmark(ctx *fiber.Ctx) error {
	if !h.controller(ctx).DeleteBookmark(ctx.UserContext(), ctx.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "bookmark not found")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) ClearBookmarks(ctx *fiber.Ctx) error {
	h.controller(ctx).ClearBookmarks(ctx.UserContext())
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) ListFlashcards(ctx *fiber.Ctx) error {
	return ctx.JSON(h.controller(ctx).Flashcards())
}

func (h *ChatHandler) CreateFlashcard(ctx *fiber.Ctx) error {
	card, err := h.controller(ctx).CreateFlashcard(ctx.UserContext(), ctx.Params("messageID"))
	if err != nil {
		return toHTTPError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(card)
}

func (h *ChatHandler) ReviewFlashcard(ctx *fiber.Ctx) error {
	card, ok := h.controller(ctx).ReviewFlashcard(ctx.UserContext(), ctx.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "flashcard not found")
	}
	return ctx.JSON(card)
}

func (h *ChatHandler) ToggleFlashcardMastered(ctx *fiber.Ctx) error {
	card, ok := h.controller(ctx).ToggleFlashcardMastered(ctx.UserContext(), ctx.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "flashcard not found")
	}
	return ctx.JSON(card)
}

func (h *ChatHandler) DeleteFlashcard(ctx *fiber.Ctx) error {
	if !h.controller(ctx).DeleteFlashcard(ctx.UserContext(), ctx.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "flashcard not found")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
