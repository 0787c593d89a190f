package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSubject(t *testing.T) {
	clf := NewKeywordClassifier(nil)

	tests := []struct {
		name        string
		content     string
		wantSubject string
		wantOK      bool
	}{
		{"physics", "tell me about force and motion", "Physics", true},
		{"chemistry", "how does an acid react with a base", "Chemistry", true},
		{"biology", "explain cell division in plants", "Biology", true},
		{"nothing", "who won the cricket match", "", false},
		{"case insensitive", "GRAVITY", "Physics", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, ok := clf.DetectSubject(tt.content)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSubject, subject)
		})
	}
}

func TestDetectSubjectTieKeepsDeclaredOrder(t *testing.T) {
	clf := NewKeywordClassifier([]SubjectKeywords{
		{Subject: "Chemistry", Keywords: []string{"salt"}},
		{Subject: "Biology", Keywords: []string{"plant"}},
	})

	subject, ok := clf.DetectSubject("salt water plant")
	assert.True(t, ok)
	assert.Equal(t, "Chemistry", subject)
}
