package models

import "time"

// Bookmark references a message of a conversation the user wants to keep
type Bookmark struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"message_id"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	SessionTitle string    `json:"session_title"`
}

// Flashcard pairs a user question with the tutor answer for later review
type Flashcard struct {
	ID           string     `json:"id"`
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	Subject      string     `json:"subject"`
	Created      time.Time  `json:"created"`
	LastReviewed *time.Time `json:"last_reviewed"`
	ReviewCount  int        `json:"review_count"`
	Mastered     bool       `json:"mastered"`
}

type QuizQuestion struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Topic         string   `json:"topic"`
	Explanation   string   `json:"explanation"`
}

// Statistics summarises the archived conversations of one owner
type Statistics struct {
	TotalSessions int            `json:"total_sessions"`
	TotalMessages int            `json:"total_messages"`
	UserMessages  int            `json:"user_messages"`
	BotMessages   int            `json:"bot_messages"`
	Bookmarks     int            `json:"bookmarks"`
	Flashcards    int            `json:"flashcards"`
	BySubject     map[string]int `json:"by_subject"`
}
