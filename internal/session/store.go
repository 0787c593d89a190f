// Package session holds the ordered message log of the active conversation.
package session

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xaenox/tutor-bot/internal/models"
)

// TitleLength is the number of runes of the first user message kept as title.
const TitleLength = 30

// Store is not safe for concurrent use; the conversation controller serializes access.
type Store struct {
	session models.Session
	titled  bool
	now     func() time.Time
}

func NewStore() *Store {
	s := &Store{now: time.Now}
	s.Clear()
	return s
}

// SetClock replaces the time source used for ids and timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Append adds a message to the end of the log. The first user message of a
// session names it; later messages never change the title.
func (s *Store) Append(sender models.Sender, text string, suggestions []string, subject *string) models.Message {
	msg := models.Message{
		ID:          uuid.New().String(),
		Sender:      sender,
		Text:        text,
		Suggestions: suggestions,
		Timestamp:   s.now(),
		Subject:     subject,
	}
	s.session.Messages = append(s.session.Messages, msg)

	if sender == models.SenderUser && !s.titled {
		s.session.Title = DeriveTitle(text)
		s.titled = true
	}
	return msg.Clone()
}

// EditAt replaces the text of a user message and discards every message
// after it. It reports false, changing nothing, for unknown ids and bot
// messages.
func (s *Store) EditAt(id, text string) bool {
	i := s.indexOf(id)
	if i < 0 || s.session.Messages[i].Sender != models.SenderUser {
		return false
	}

	s.session.Messages[i].Text = text
	s.session.Messages = s.session.Messages[:i+1]
	return true
}

// DeleteAt removes exactly the message with the given id.
func (s *Store) DeleteAt(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.session.Messages = append(s.session.Messages[:i], s.session.Messages[i+1:]...)
	return true
}

// Clear starts a fresh, empty session.
func (s *Store) Clear() {
	now := s.now()
	s.session = models.Session{
		ID:        newSessionID(now),
		Messages:  []models.Message{},
		Title:     models.DefaultSessionTitle,
		Timestamp: now,
	}
	s.titled = false
}

// Replace installs a copy of an archived session as the active one.
func (s *Store) Replace(session models.Session) {
	s.session = session.Clone()
	if s.session.Messages == nil {
		s.session.Messages = []models.Message{}
	}
	s.titled = false
	for _, m := range s.session.Messages {
		if m.Sender == models.SenderUser {
			s.titled = true
			break
		}
	}
}

// Snapshot returns a deep copy of the active session.
func (s *Store) Snapshot() models.Session {
	return s.session.Clone()
}

func (s *Store) Messages() []models.Message {
	return s.Snapshot().Messages
}

// Find returns the message with id and its position.
func (s *Store) Find(id string) (models.Message, int, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return models.Message{}, -1, false
	}
	return s.session.Messages[i].Clone(), i, true
}

func (s *Store) Len() int {
	return len(s.session.Messages)
}

func (s *Store) ID() string {
	return s.session.ID
}

func (s *Store) Title() string {
	return s.session.Title
}

func (s *Store) indexOf(id string) int {
	for i, m := range s.session.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// DeriveTitle keeps the first TitleLength runes of text, marking truncation with "...".
func DeriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= TitleLength {
		return text
	}
	return string([]rune(text)[:TitleLength]) + "..."
}

// newSessionID returns a time-ordered UUIDv7 seeded from the creation instant.
func newSessionID(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	// Overwrite the 48-bit millisecond prefix so the id reflects the injected clock.
	ms := uint64(now.UnixMilli())
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)
	return id.String()
}
