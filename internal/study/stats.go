package study

import "github.com/xaenox/tutor-bot/internal/models"

// ComputeStatistics summarises archived sessions. BySubject counts messages
// that carry a subject.
func ComputeStatistics(sessions []models.Session, bookmarks, flashcards int) models.Statistics {
	stats := models.Statistics{
		TotalSessions: len(sessions),
		Bookmarks:     bookmarks,
		Flashcards:    flashcards,
		BySubject:     map[string]int{},
	}
	for _, s := range sessions {
		stats.TotalMessages += len(s.Messages)
		for _, m := range s.Messages {
			if m.Sender == models.SenderUser {
				stats.UserMessages++
			}
			if m.Subject != nil && *m.Subject != "" {
				stats.BySubject[*m.Subject]++
			}
		}
	}
	stats.BotMessages = stats.TotalMessages - stats.UserMessages
	return stats
}
