package bot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/tutor-bot/internal/conversation"
	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/study"
	"go.uber.org/zap"
)

const (
	historyPageSize = 10
	quizLength      = 5

	// Telegram poll limits
	maxPollQuestion = 300
	maxPollOption   = 100
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "new":
		b.handleNew(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	case "load":
		b.handleLoad(ctx, message)
	case "delete":
		b.handleDelete(ctx, message)
	case "clearhistory":
		b.handleClearHistory(ctx, message)
	case "export":
		b.handleExport(ctx, message)
	case "stats":
		b.handleStats(ctx, message)
	case "bookmark":
		b.handleBookmark(ctx, message)
	case "bookmarks":
		b.handleBookmarks(ctx, message)
	case "unbookmark":
		b.handleUnbookmark(ctx, message)
	case "clearbookmarks":
		b.handleClearBookmarks(ctx, message)
	case "flashcard":
		b.handleFlashcard(ctx, message)
	case "flashcards":
		b.handleFlashcards(ctx, message)
	case "review":
		b.handleReview(ctx, message)
	case "mastered":
		b.handleMastered(ctx, message)
	case "deleteflashcard":
		b.handleDeleteFlashcard(ctx, message)
	case "quiz":
		b.handleQuiz(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	welcome := `Welcome to Studix AI Tutor! 📚
I answer Class 10 Science and Social Studies questions.

Just send me a question, or tap one of the suggestions under my answers.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)

	if notice := b.controller(ctx, message.Chat.ID).Notice(); notice != "" {
		b.sendMessage(message.Chat.ID, notice)
	}
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/new - Start a new chat
/history - Show your previous chats
/load <n> - Continue chat number n
/delete <n> - Delete chat number n
/clearhistory - Delete all chats
/export - Download the current chat
/stats - Show your learning statistics
/bookmark - Bookmark the last answer (or the answer you reply to)
/bookmarks - List your bookmarks
/unbookmark <n> - Remove bookmark number n
/clearbookmarks - Remove all bookmarks
/flashcard - Make a flashcard from the last answer
/flashcards - List your flashcards
/review <n> - Review flashcard number n
/mastered <n> - Mark flashcard number n as mastered (or not)
/deleteflashcard <n> - Delete flashcard number n
/quiz [subject] - Take a short quiz

Edit a question you sent and I'll answer it again.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleNew(ctx context.Context, message *tgbotapi.Message) {
	b.controller(ctx, message.Chat.ID).NewSession(ctx)
	b.forgetChat(message.Chat.ID)
	b.sendMessage(message.Chat.ID, "Started a new chat. Ask me anything! 💬")
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	sessions := b.controller(ctx, message.Chat.ID).Sessions()
	if len(sessions) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any saved chats yet.")
		return
	}

	response := "*Your recent chats:*\n\n"
	for i, s := range sessions {
		if i == historyPageSize {
			break
		}
		response += fmt.Sprintf("%d\\. *%s*\n", i+1, escapeMarkdown(s.Title))
		response += fmt.Sprintf("_%s, %d messages_\n", escapeMarkdown(s.Timestamp.Format("2006-01-02 15:04")), len(s.Messages))
	}
	response += "\nUse /load <n> to continue a chat\\."

	b.sendMarkdown(message.Chat.ID, response)
}

// sessionArg resolves the 1-based chat number given as command argument.
func (b *Bot) sessionArg(ctx context.Context, message *tgbotapi.Message) (models.Session, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	sessions := b.controller(ctx, message.Chat.ID).Sessions()
	if err != nil || n < 1 || n > len(sessions) {
		b.sendErrorMessage(message.Chat.ID, fmt.Sprintf("Please give a chat number from /history, e.g. /%s 1", message.Command()))
		return models.Session{}, false
	}
	return sessions[n-1], true
}

func (b *Bot) handleLoad(ctx context.Context, message *tgbotapi.Message) {
	s, ok := b.sessionArg(ctx, message)
	if !ok {
		return
	}
	if !b.controller(ctx, message.Chat.ID).LoadSession(ctx, s.ID) {
		b.sendErrorMessage(message.Chat.ID, "That chat no longer exists.")
		return
	}
	b.forgetChat(message.Chat.ID)

	text := fmt.Sprintf("Continuing \"%s\" (%d messages).", s.Title, len(s.Messages))
	if n := len(s.Messages); n > 0 {
		text += "\n\nLast message:\n" + s.Messages[n-1].Text
	}
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message) {
	s, ok := b.sessionArg(ctx, message)
	if !ok {
		return
	}
	if b.controller(ctx, message.Chat.ID).DeleteSession(ctx, s.ID) {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Deleted \"%s\". 🗑️", s.Title))
	}
}

func (b *Bot) handleClearHistory(ctx context.Context, message *tgbotapi.Message) {
	b.controller(ctx, message.Chat.ID).DeleteAllSessions(ctx)
	b.forgetChat(message.Chat.ID)
	b.sendMessage(message.Chat.ID, "All chat history deleted.")
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) {
	ctrl := b.controller(ctx, message.Chat.ID)
	if len(ctrl.Messages()) == 0 {
		b.sendMessage(message.Chat.ID, "No messages to export!")
		return
	}

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileBytes{
		Name:  conversation.ExportFileName(time.Now()),
		Bytes: []byte(ctrl.Export()),
	})
	doc.Caption = "Chat exported successfully! 📥"
	if _, err := b.sender.Send(doc); err != nil {
		b.logger.Error("Failed to send export",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't export this chat.")
	}
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	stats := b.controller(ctx, message.Chat.ID).Statistics(ctx)
	b.sendMessage(message.Chat.ID, formatStatistics(stats))
}

func formatStatistics(stats models.Statistics) string {
	var sb strings.Builder
	sb.WriteString("📊 Your Learning Statistics\n\n")
	fmt.Fprintf(&sb, "💬 Chat Sessions: %d\n", stats.TotalSessions)
	fmt.Fprintf(&sb, "❓ Questions Asked: %d\n", stats.UserMessages)
	fmt.Fprintf(&sb, "⭐ Bookmarked: %d\n", stats.Bookmarks)
	fmt.Fprintf(&sb, "📇 Flashcards: %d\n", stats.Flashcards)

	if len(stats.BySubject) > 0 {
		sb.WriteString("\n")
		for _, subject := range slices.Sorted(maps.Keys(stats.BySubject)) {
			fmt.Fprintf(&sb, "%s: %d questions\n", subject, stats.BySubject[subject])
		}
	}
	return sb.String()
}

func (b *Bot) handleBookmark(ctx context.Context, message *tgbotapi.Message) {
	id, ok := b.target(message)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "There is no answer to bookmark yet.")
		return
	}

	on, err := b.controller(ctx, message.Chat.ID).ToggleBookmark(ctx, id)
	switch {
	case errors.Is(err, study.ErrMessageNotFound):
		b.sendErrorMessage(message.Chat.ID, "That message is not part of the current chat.")
	case err != nil:
		b.logger.Error("Failed to toggle bookmark", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't update your bookmarks.")
	case on:
		b.sendMessage(message.Chat.ID, "Bookmarked! ⭐")
	default:
		b.sendMessage(message.Chat.ID, "Bookmark removed! ⭐")
	}
}

func (b *Bot) handleFlashcard(ctx context.Context, message *tgbotapi.Message) {
	id, ok := b.target(message)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "There is no answer to turn into a flashcard yet.")
		return
	}

	card, err := b.controller(ctx, message.Chat.ID).CreateFlashcard(ctx, id)
	switch {
	case errors.Is(err, study.ErrNoQuestion), errors.Is(err, study.ErrMessageNotFound):
		b.sendErrorMessage(message.Chat.ID, "Could not create flashcard.")
	case err != nil:
		b.logger.Error("Failed to create flashcard", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Could not create flashcard.")
	default:
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Flashcard created! 📇\n\n%s\n(%s)", card.Front, card.Subject))
	}
}

// itemArg resolves the 1-based list number given as command argument.
func itemArg[T any](b *Bot, message *tgbotapi.Message, items []T, list string) (T, bool) {
	var zero T
	n, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil || n < 1 || n > len(items) {
		b.sendErrorMessage(message.Chat.ID, fmt.Sprintf("Please give a number from /%s, e.g. /%s 1", list, message.Command()))
		return zero, false
	}
	return items[n-1], true
}

func (b *Bot) handleBookmarks(ctx context.Context, message *tgbotapi.Message) {
	bookmarks := b.controller(ctx, message.Chat.ID).Bookmarks()
	if len(bookmarks) == 0 {
		b.sendMessage(message.Chat.ID, "No bookmarks yet. Use /bookmark after an answer you like.")
		return
	}

	var sb strings.Builder
	sb.WriteString("⭐ Your bookmarks:\n")
	for i, bm := range bookmarks {
		fmt.Fprintf(&sb, "\n%d. %s\n(%s)\n", i+1, truncate(bm.Text, 200), bm.SessionTitle)
	}
	b.sendMessage(message.Chat.ID, truncate(sb.String(), maxMessageLength))
}

func (b *Bot) handleUnbookmark(ctx context.Context, message *tgbotapi.Message) {
	ctrl := b.controller(ctx, message.Chat.ID)
	bm, ok := itemArg(b, message, ctrl.Bookmarks(), "bookmarks")
	if !ok {
		return
	}
	if !ctrl.DeleteBookmark(ctx, bm.ID) {
		b.sendErrorMessage(message.Chat.ID, "That bookmark no longer exists.")
		return
	}
	b.sendMessage(message.Chat.ID, "Bookmark removed! ⭐")
}

func (b *Bot) handleClearBookmarks(ctx context.Context, message *tgbotapi.Message) {
	b.controller(ctx, message.Chat.ID).ClearBookmarks(ctx)
	b.sendMessage(message.Chat.ID, "All bookmarks removed.")
}

func (b *Bot) handleFlashcards(ctx context.Context, message *tgbotapi.Message) {
	cards := b.controller(ctx, message.Chat.ID).Flashcards()
	if len(cards) == 0 {
		b.sendMessage(message.Chat.ID, "No flashcards yet. Use /flashcard after an answer.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📇 Your flashcards:\n")
	for i, card := range cards {
		status := ""
		if card.Mastered {
			status = " ✅"
		}
		fmt.Fprintf(&sb, "\n%d. %s%s\n(%s, reviewed %d times)\n", i+1, truncate(card.Front, 200), status, card.Subject, card.ReviewCount)
	}
	sb.WriteString("\nUse /review <n> to see an answer.")
	b.sendMessage(message.Chat.ID, truncate(sb.String(), maxMessageLength))
}

func (b *Bot) handleReview(ctx context.Context, message *tgbotapi.Message) {
	ctrl := b.controller(ctx, message.Chat.ID)
	card, ok := itemArg(b, message, ctrl.Flashcards(), "flashcards")
	if !ok {
		return
	}
	card, ok = ctrl.ReviewFlashcard(ctx, card.ID)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "That flashcard no longer exists.")
		return
	}
	text := fmt.Sprintf("❓ %s\n\n💡 %s", card.Front, strings.ReplaceAll(card.Back, "**", ""))
	b.sendMessage(message.Chat.ID, truncate(text, maxMessageLength))
}

func (b *Bot) handleMastered(ctx context.Context, message *tgbotapi.Message) {
	ctrl := b.controller(ctx, message.Chat.ID)
	card, ok := itemArg(b, message, ctrl.Flashcards(), "flashcards")
	if !ok {
		return
	}
	card, ok = ctrl.ToggleFlashcardMastered(ctx, card.ID)
	switch {
	case !ok:
		b.sendErrorMessage(message.Chat.ID, "That flashcard no longer exists.")
	case card.Mastered:
		b.sendMessage(message.Chat.ID, "Marked as mastered! ✅")
	default:
		b.sendMessage(message.Chat.ID, "Marked as still learning.")
	}
}

func (b *Bot) handleDeleteFlashcard(ctx context.Context, message *tgbotapi.Message) {
	ctrl := b.controller(ctx, message.Chat.ID)
	card, ok := itemArg(b, message, ctrl.Flashcards(), "flashcards")
	if !ok {
		return
	}
	if !ctrl.DeleteFlashcard(ctx, card.ID) {
		b.sendErrorMessage(message.Chat.ID, "That flashcard no longer exists.")
		return
	}
	b.sendMessage(message.Chat.ID, "Flashcard deleted. 🗑️")
}

func (b *Bot) handleQuiz(ctx context.Context, message *tgbotapi.Message) {
	ctrl := b.controller(ctx, message.Chat.ID)
	subject := strings.TrimSpace(message.CommandArguments())

	questions, err := ctrl.Quiz(subject, quizLength)
	if err != nil {
		b.handleControllerError(message.Chat.ID, err)
		return
	}
	if len(questions) == 0 {
		b.sendMessage(message.Chat.ID, "Not enough data to generate quiz!")
		return
	}

	if subject == "" {
		if names := ctrl.Subjects(); len(names) > 0 {
			b.sendMessage(message.Chat.ID, "Tip: pick a subject with /quiz "+strings.Join(names, ", /quiz "))
		}
	}

	for _, q := range questions {
		options := make([]string, len(q.Options))
		for i, o := range q.Options {
			options[i] = truncate(o, maxPollOption)
		}

		poll := tgbotapi.NewPoll(message.Chat.ID, truncate(q.Question, maxPollQuestion), options...)
		poll.Type = "quiz"
		poll.IsAnonymous = false
		poll.CorrectOptionID = int64(q.CorrectAnswer)
		if _, err := b.sender.Send(poll); err != nil {
			b.logger.Error("Failed to send quiz question",
				zap.Error(err),
				zap.Int64("chat_id", message.Chat.ID),
				zap.Int("question", q.ID))
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't send the quiz.")
			return
		}
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}
