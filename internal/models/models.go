package models

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// DefaultSessionTitle is the title every session carries until its first user message.
const DefaultSessionTitle = "New Chat"

// Message represents one entry of a conversation transcript
type Message struct {
	ID          string    `json:"id"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	Suggestions []string  `json:"suggestions"`
	Timestamp   time.Time `json:"timestamp"`
	Subject     *string   `json:"subject"`
}

// Session represents a single conversation with its ordered messages
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy so archived sessions never share slices with the active one.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

func (m Message) Clone() Message {
	out := m
	if m.Suggestions != nil {
		out.Suggestions = append([]string(nil), m.Suggestions...)
	}
	if m.Subject != nil {
		subject := *m.Subject
		out.Subject = &subject
	}
	return out
}

type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchSubject  MatchType = "subject"
	MatchFuzzy    MatchType = "fuzzy"
	MatchSemantic MatchType = "semantic"
	MatchFallback MatchType = "fallback"
)

// MatchResult is the outcome of resolving one query against the corpus
type MatchResult struct {
	Answer      string    `json:"answer"`
	Suggestions []string  `json:"suggestions"`
	MatchType   MatchType `json:"match_type"`
	Subject     string    `json:"subject,omitempty"`
}

// SubjectRef returns the subject as a nullable message field.
func (r MatchResult) SubjectRef() *string {
	if r.Subject == "" {
		return nil
	}
	subject := r.Subject
	return &subject
}
