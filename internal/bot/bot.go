package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/tutor-bot/internal/conversation"
	"go.uber.org/zap"
)

// sender is the part of the Telegram API the handlers need.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   sender
	registry *conversation.Registry
	timeout  int
	logger   *zap.Logger

	// Telegram message ids mapped to conversation message ids, per chat.
	mu       sync.Mutex
	messages map[messageKey]string
	lastBot  map[int64]string

	qmu    sync.Mutex
	queues map[int64]chan tgbotapi.Update
}

const (
	// Telegram rejects longer messages.
	maxMessageLength = 4096
	chatQueueSize    = 32
)

type messageKey struct {
	chatID    int64
	messageID int
}

type Config struct {
	Token   string
	Debug   bool
	Timeout int
}

func New(cfg Config, registry *conversation.Registry, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = cfg.Debug

	b := newBot(api, registry, logger)
	b.api = api
	b.timeout = cfg.Timeout
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	return b, nil
}

func newBot(s sender, registry *conversation.Registry, logger *zap.Logger) *Bot {
	return &Bot{
		sender:   s,
		registry: registry,
		timeout:  60,
		logger:   logger,
		messages: make(map[messageKey]string),
		lastBot:  make(map[int64]string),
		queues:   make(map[int64]chan tgbotapi.Update),
	}
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch queues the update on its chat's worker. Updates of one chat are
// handled in arrival order; different chats proceed in parallel.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	var message *tgbotapi.Message
	switch {
	case update.Message != nil:
		message = update.Message
	case update.EditedMessage != nil:
		message = update.EditedMessage
	default:
		return
	}
	select {
	case b.queue(ctx, message.Chat.ID) <- update:
	case <-ctx.Done():
	}
}

func (b *Bot) queue(ctx context.Context, chatID int64) chan<- tgbotapi.Update {
	b.qmu.Lock()
	defer b.qmu.Unlock()

	q, ok := b.queues[chatID]
	if !ok {
		q = make(chan tgbotapi.Update, chatQueueSize)
		b.queues[chatID] = q
		go b.work(ctx, q)
	}
	return q
}

func (b *Bot) work(ctx context.Context, q <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-q:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.EditedMessage != nil:
		b.handleEdit(ctx, update.EditedMessage)
	}
}

func (b *Bot) controller(ctx context.Context, chatID int64) *conversation.Controller {
	return b.registry.Get(ctx, strconv.FormatInt(chatID, 10))
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}

	b.sendTyping(message.Chat.ID)

	reply, err := b.controller(ctx, message.Chat.ID).Submit(ctx, content)
	if err != nil {
		b.handleControllerError(message.Chat.ID, err)
		return
	}

	b.remember(message.Chat.ID, message.MessageID, reply.User.ID)
	b.sendReply(message.Chat.ID, message.MessageID, reply)
}

// handleEdit answers the edited question again; the conversation drops
// everything that followed the old text.
func (b *Bot) handleEdit(ctx context.Context, message *tgbotapi.Message) {
	id, ok := b.lookup(message.Chat.ID, message.MessageID)
	if !ok {
		return
	}

	b.sendTyping(message.Chat.ID)

	reply, edited, err := b.controller(ctx, message.Chat.ID).EditMessage(ctx, id, message.Text)
	if err != nil {
		b.handleControllerError(message.Chat.ID, err)
		return
	}
	if !edited {
		return
	}
	b.sendReply(message.Chat.ID, message.MessageID, reply)
}

func (b *Bot) handleControllerError(chatID int64, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotReady), errors.Is(err, conversation.ErrEmptyInput):
		b.sendErrorMessage(chatID, capitalize(err.Error())+".")
	default:
		b.logger.Error("Failed to answer message", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Sorry, something went wrong. Please try again.")
	}
}

func (b *Bot) sendReply(chatID int64, replyToID int, reply conversation.Reply) {
	text, mode := formatAnswer(reply.Bot.Text)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = mode
	msg.ReplyToMessageID = replyToID
	if keyboard, ok := suggestionKeyboard(reply.Bot.Suggestions); ok {
		msg.ReplyMarkup = keyboard
	}

	sent, err := b.sender.Send(msg)
	if err != nil {
		b.logger.Error("Failed to send answer",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("match_type", string(reply.Result.MatchType)))
		return
	}
	b.remember(chatID, sent.MessageID, reply.Bot.ID)

	b.mu.Lock()
	b.lastBot[chatID] = reply.Bot.ID
	b.mu.Unlock()
}

// formatAnswer renders **bold** spans as MarkdownV2. Answers without bold
// spans, with unbalanced markers, or too long once escaped go out as plain
// text cut to the message limit.
func formatAnswer(text string) (string, string) {
	parts := strings.Split(text, "**")
	if len(parts) > 1 && len(parts)%2 == 1 {
		var sb strings.Builder
		for i, part := range parts {
			if i%2 == 1 && part != "" {
				sb.WriteString("*" + escapeMarkdown(part) + "*")
				continue
			}
			sb.WriteString(escapeMarkdown(part))
		}
		if rendered := sb.String(); utf8.RuneCountInString(rendered) <= maxMessageLength {
			return rendered, tgbotapi.ModeMarkdownV2
		}
	}
	return truncate(strings.ReplaceAll(text, "**", ""), maxMessageLength), ""
}

func suggestionKeyboard(suggestions []string) (tgbotapi.ReplyKeyboardMarkup, bool) {
	if len(suggestions) == 0 {
		return tgbotapi.ReplyKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(s)))
	}
	keyboard := tgbotapi.NewOneTimeReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard, true
}

func (b *Bot) remember(chatID int64, telegramID int, messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[messageKey{chatID, telegramID}] = messageID
}

func (b *Bot) lookup(chatID int64, telegramID int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.messages[messageKey{chatID, telegramID}]
	return id, ok
}

// target picks the message a study command refers to: the replied-to
// message when there is one, otherwise the latest answer.
func (b *Bot) target(message *tgbotapi.Message) (string, bool) {
	if message.ReplyToMessage != nil {
		return b.lookup(message.Chat.ID, message.ReplyToMessage.MessageID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.lastBot[message.Chat.ID]
	return id, ok
}

func (b *Bot) forgetChat(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.messages {
		if key.chatID == chatID {
			delete(b.messages, key)
		}
	}
	delete(b.lastBot, chatID)
}

func (b *Bot) sendTyping(chatID int64) {
	if _, err := b.sender.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("Failed to send chat action", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
