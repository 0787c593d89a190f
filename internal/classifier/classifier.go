package classifier

import (
	"strings"
)

// Classifier detects which subject a piece of text is about.
type Classifier interface {
	DetectSubject(content string) (string, bool)
}

// SubjectKeywords is one keyword list; lists are checked in declaration order.
type SubjectKeywords struct {
	Subject  string
	Keywords []string
}

// DefaultSubjects is the keyword set used when no custom lists are configured.
var DefaultSubjects = []SubjectKeywords{
	{
		Subject: "Physics",
		Keywords: []string{"force", "motion", "energy", "light", "electricity", "magnetic", "current", "voltage",
			"power", "work", "pressure", "velocity", "acceleration", "gravity", "wave"},
	},
	{
		Subject: "Chemistry",
		Keywords: []string{"atom", "molecule", "chemical", "reaction", "acid", "base", "salt", "element",
			"compound", "periodic", "electron", "proton", "neutron", "bond", "valency"},
	},
	{
		Subject: "Biology",
		Keywords: []string{"cell", "organism", "plant", "animal", "evolution", "dna", "gene", "tissue",
			"organ", "photosynthesis", "respiration", "digestion", "reproduction"},
	},
}

type KeywordClassifier struct {
	subjects []SubjectKeywords
}

func NewKeywordClassifier(subjects []SubjectKeywords) *KeywordClassifier {
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}
	return &KeywordClassifier{
		subjects: subjects,
	}
}

// DetectSubject counts keyword occurrences (substring match) per subject and
// returns the subject with most hits. Ties keep the earlier list.
func (c *KeywordClassifier) DetectSubject(content string) (string, bool) {
	content = strings.ToLower(content)

	best := ""
	maxHits := 0
	for _, s := range c.subjects {
		hits := 0
		for _, keyword := range s.Keywords {
			if strings.Contains(content, keyword) {
				hits++
			}
		}
		if hits > maxHits {
			maxHits = hits
			best = s.Subject
		}
	}

	return best, maxHits > 0
}

