package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/tutor-bot/internal/models"
)

const (
	AssistantName = "Studix AI"

	exportDateLayout = "2006-01-02 15:04:05"
	exportTimeLayout = "15:04:05"
)

// Export renders session as a plain text transcript.
func Export(session models.Session, exportedAt time.Time) string {
	var b strings.Builder
	rule := strings.Repeat("=", 61)

	fmt.Fprintf(&b, "%s Tutor - Chat Export\n", AssistantName)
	fmt.Fprintf(&b, "Title: %s\n", session.Title)
	fmt.Fprintf(&b, "Date: %s\n", session.Timestamp.Format(exportDateLayout))
	b.WriteString(rule + "\n\n")

	for _, msg := range session.Messages {
		sender := AssistantName
		if msg.Sender == models.SenderUser {
			sender = "You"
		}
		fmt.Fprintf(&b, "[%s] %s:\n", msg.Timestamp.Format(exportTimeLayout), sender)
		b.WriteString(msg.Text + "\n\n")

		if len(msg.Suggestions) > 0 {
			fmt.Fprintf(&b, "Suggestions: %s\n\n", strings.Join(msg.Suggestions, " | "))
		}
		b.WriteString(strings.Repeat("-", 61) + "\n\n")
	}

	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Total Messages: %d\n", len(session.Messages))
	fmt.Fprintf(&b, "Exported on: %s\n", exportedAt.Format(exportDateLayout))
	return b.String()
}

// ExportFileName is the suggested download name for a transcript.
func ExportFileName(exportedAt time.Time) string {
	return fmt.Sprintf("studix-chat-%d.txt", exportedAt.UnixMilli())
}
