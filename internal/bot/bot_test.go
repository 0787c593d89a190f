package bot

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/tutor-bot/internal/conversation"
	"github.com/xaenox/tutor-bot/internal/corpus"
	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/storage"
	"go.uber.org/zap"
)

const chatID int64 = 1001

type fakeSender struct {
	mu     sync.Mutex
	nextID int
	sent   []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 10000 + f.nextID}, nil
}

// texts returns the text of every plain message sent, skipping chat actions.
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeSender) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	t.Helper()
	registry := conversation.NewRegistry(storage.NewMemoryStorage(), conversation.RegistryConfig{}, zap.NewNop(),
		conversation.WithRand(rand.New(rand.NewSource(1))))
	registry.SetCorpus(corpus.New([]models.QAPair{
		{Question: "what is photosynthesis", Answer: "Photosynthesis is..."},
		{Question: "what is gravity", Answer: "Gravity is..."},
		{Question: "what is an atom", Answer: "An atom is..."},
	}, nil))

	fake := &fakeSender{}
	return newBot(fake, registry, zap.NewNop()), fake
}

func textMessage(id int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: id,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: 7},
		Text:      text,
	}
}

func commandMessage(id int, text string) *tgbotapi.Message {
	msg := textMessage(id, text)
	command := strings.SplitN(text, " ", 2)[0]
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	return msg
}

func TestAnswerWithSuggestionKeyboard(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage(1, "What is gravity?"))

	require.Len(t, fake.sent, 2)
	_, isAction := fake.sent[0].(tgbotapi.ChatActionConfig)
	assert.True(t, isAction, "typing indicator comes first")

	answer, ok := fake.sent[1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "Gravity is...", answer.Text)
	assert.Equal(t, 1, answer.ReplyToMessageID)

	keyboard, ok := answer.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, keyboard.Keyboard, 2)
}

func TestBlankMessageIsRejected(t *testing.T) {
	b, fake := newTestBot(t)

	b.handleMessage(context.Background(), textMessage(1, "   "))

	texts := fake.texts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "⚠️ "))
}

func TestEditedMessageIsAnsweredAgain(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage(1, "what is gravity"))
	b.handleMessage(ctx, textMessage(2, "what is an atom"))
	fake.reset()

	b.handleEdit(ctx, textMessage(1, "what is photosynthesis"))

	texts := fake.texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "Photosynthesis is...", texts[0])

	msgs := b.controller(ctx, chatID).Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "what is photosynthesis", msgs[0].Text)
}

func TestEditOfUnknownMessageIsIgnored(t *testing.T) {
	b, fake := newTestBot(t)

	b.handleEdit(context.Background(), textMessage(99, "what is gravity"))

	assert.Empty(t, fake.sent)
}

func TestHistoryLoadAndDelete(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage(1, "what is gravity"))
	b.handleCommand(ctx, commandMessage(2, "/new"))
	b.handleMessage(ctx, textMessage(3, "what is an atom"))
	b.handleCommand(ctx, commandMessage(4, "/new"))
	fake.reset()

	b.handleCommand(ctx, commandMessage(5, "/history"))
	history, ok := fake.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, history.ParseMode)
	assert.Contains(t, history.Text, "1\\. *what is an atom*")
	assert.Contains(t, history.Text, "2\\. *what is gravity*")

	b.handleCommand(ctx, commandMessage(6, "/load 2"))
	assert.Equal(t, "what is gravity", b.controller(ctx, chatID).Session().Title)

	b.handleCommand(ctx, commandMessage(7, "/load 9"))
	assert.True(t, strings.HasPrefix(fake.texts()[len(fake.texts())-1], "⚠️ "))

	b.handleCommand(ctx, commandMessage(8, "/delete 1"))
	assert.Len(t, b.controller(ctx, chatID).Sessions(), 1)

	b.handleCommand(ctx, commandMessage(9, "/clearhistory"))
	assert.Empty(t, b.controller(ctx, chatID).Sessions())
}

func TestBookmarkAndFlashcardCommands(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleCommand(ctx, commandMessage(1, "/bookmark"))
	assert.True(t, strings.HasPrefix(fake.texts()[0], "⚠️ "), "nothing to bookmark yet")

	b.handleMessage(ctx, textMessage(2, "what is gravity"))
	fake.reset()

	b.handleCommand(ctx, commandMessage(3, "/bookmark"))
	b.handleCommand(ctx, commandMessage(4, "/flashcard"))

	texts := fake.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Bookmarked! ⭐", texts[0])
	assert.True(t, strings.HasPrefix(texts[1], "Flashcard created!"))

	ctrl := b.controller(ctx, chatID)
	assert.Len(t, ctrl.Bookmarks(), 1)
	assert.Len(t, ctrl.Flashcards(), 1)
}

func TestFlashcardFromReplyToQuestionFails(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage(1, "what is gravity"))
	fake.reset()

	cmd := commandMessage(2, "/flashcard")
	cmd.ReplyToMessage = textMessage(1, "what is gravity")
	b.handleCommand(ctx, cmd)

	assert.Equal(t, []string{"⚠️ Could not create flashcard."}, fake.texts())
}

func TestExportSendsDocument(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleCommand(ctx, commandMessage(1, "/export"))
	assert.Equal(t, []string{"No messages to export!"}, fake.texts())

	b.handleMessage(ctx, textMessage(2, "what is gravity"))
	b.handleCommand(ctx, commandMessage(3, "/export"))

	doc, ok := fake.last().(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Contains(t, string(file.Bytes), "Total Messages: 2")
	assert.True(t, strings.HasSuffix(file.Name, ".txt"))
}

func TestQuizSendsPolls(t *testing.T) {
	b, fake := newTestBot(t)

	b.handleCommand(context.Background(), commandMessage(1, "/quiz"))

	var polls []tgbotapi.SendPollConfig
	for _, c := range fake.sent {
		if poll, ok := c.(tgbotapi.SendPollConfig); ok {
			polls = append(polls, poll)
		}
	}
	require.Len(t, polls, 3, "three corpus pairs make three questions")
	for _, poll := range polls {
		assert.Equal(t, "quiz", poll.Type)
		assert.Len(t, poll.Options, 4)
		assert.False(t, poll.IsAnonymous)
	}
}

func TestStatsAndUnknownCommand(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage(1, "what is gravity"))
	fake.reset()

	b.handleCommand(ctx, commandMessage(2, "/stats"))
	b.handleCommand(ctx, commandMessage(3, "/dance"))

	texts := fake.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Chat Sessions: 1")
	assert.Contains(t, texts[0], "Questions Asked: 1")
	assert.Equal(t, "Unknown command. Use /help to see available commands.", texts[1])
}

func TestManageBookmarksAndFlashcards(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, textMessage(1, "what is gravity"))
	b.handleCommand(ctx, commandMessage(2, "/bookmark"))
	b.handleCommand(ctx, commandMessage(3, "/flashcard"))
	fake.reset()

	b.handleCommand(ctx, commandMessage(4, "/bookmarks"))
	b.handleCommand(ctx, commandMessage(5, "/flashcards"))
	texts := fake.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "1. Gravity is...")
	assert.Contains(t, texts[1], "1. what is gravity")

	ctrl := b.controller(ctx, chatID)
	b.handleCommand(ctx, commandMessage(6, "/review 1"))
	b.handleCommand(ctx, commandMessage(7, "/mastered 1"))
	require.Len(t, ctrl.Flashcards(), 1)
	assert.Equal(t, 1, ctrl.Flashcards()[0].ReviewCount)
	assert.True(t, ctrl.Flashcards()[0].Mastered)

	fake.reset()
	b.handleCommand(ctx, commandMessage(8, "/review 5"))
	require.Len(t, fake.texts(), 1)
	assert.True(t, strings.HasPrefix(fake.texts()[0], "⚠️ "))

	b.handleCommand(ctx, commandMessage(9, "/unbookmark 1"))
	assert.Empty(t, ctrl.Bookmarks())
	b.handleCommand(ctx, commandMessage(10, "/deleteflashcard 1"))
	assert.Empty(t, ctrl.Flashcards())

	b.handleCommand(ctx, commandMessage(11, "/clearbookmarks"))
	texts = fake.texts()
	assert.Equal(t, "All bookmarks removed.", texts[len(texts)-1])
}

func TestUpdatesOfOneChatAreHandledInOrder(t *testing.T) {
	b, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	questions := []string{"what is gravity", "what is an atom", "what is photosynthesis"}
	for i, q := range questions {
		b.dispatch(ctx, tgbotapi.Update{Message: textMessage(i+1, q)})
	}

	ctrl := b.controller(ctx, chatID)
	require.Eventually(t, func() bool { return len(ctrl.Messages()) == 6 }, time.Second, 5*time.Millisecond)
	msgs := ctrl.Messages()
	for i, q := range questions {
		assert.Equal(t, q, msgs[2*i].Text)
	}
}

func TestFormatAnswer(t *testing.T) {
	long := strings.Repeat("x", 5000)

	tests := []struct {
		name     string
		text     string
		wantText string
		wantMode string
	}{
		{"plain", "Gravity is...", "Gravity is...", ""},
		{"bold", "**Force** is a push.", "*Force* is a push\\.", tgbotapi.ModeMarkdownV2},
		{"unbalanced markers", "a ** b", "a  b", ""},
		{"too long", long, long[:maxMessageLength-3] + "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, mode := formatAnswer(tt.text)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantMode, mode)
		})
	}
}

func TestFormatAnswerFallsBackWhenEscapingOverflows(t *testing.T) {
	text, mode := formatAnswer("**Note** " + strings.Repeat(".", 3000))

	assert.Empty(t, mode)
	assert.False(t, strings.Contains(text, "**"))
	assert.LessOrEqual(t, utf8.RuneCountInString(text), maxMessageLength)
}

func TestBoldAnswerIsSentAsMarkdown(t *testing.T) {
	b, fake := newTestBot(t)
	b.registry.SetCorpus(corpus.New([]models.QAPair{
		{Question: "what is force", Answer: "**Force** is a push or a pull."},
	}, nil))

	b.handleMessage(context.Background(), textMessage(1, "what is force"))

	answer, ok := fake.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, answer.ParseMode)
	assert.Equal(t, "*Force* is a push or a pull\\.", answer.Text)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.d \(e\) \\`, escapeMarkdown(`a_b*c.d (e) \`))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
