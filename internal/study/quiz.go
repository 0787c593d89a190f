package study

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/xaenox/tutor-bot/internal/corpus"
	"github.com/xaenox/tutor-bot/internal/models"
)

const (
	DefaultQuizLength  = 10
	OptionsPerQuestion = 4
)

type quizSource struct {
	question string
	answer   string
	topic    string
}

// GenerateQuiz builds up to count multiple choice questions from the
// subtopics of subject (when it is loaded) and the corpus pairs. Every
// question has OptionsPerQuestion options with the correct one tracked in
// CorrectAnswer.
func GenerateQuiz(c *corpus.Corpus, subject string, count int, rng *rand.Rand) []models.QuizQuestion {
	if count <= 0 {
		count = DefaultQuizLength
	}

	var sources []quizSource
	if s, ok := c.Subject(subject); ok {
		for _, chapter := range s.Chapters {
			for _, topic := range chapter.Topics {
				for _, st := range topic.Subtopics {
					answer := st.Explanation
					if answer == "" {
						answer = st.Name
					}
					sources = append(sources, quizSource{
						question: fmt.Sprintf("What is %s?", st.Name),
						answer:   answer,
						topic:    topic.Topic,
					})
				}
			}
		}
	}
	for _, pair := range c.Pairs() {
		sources = append(sources, quizSource{question: pair.Question, answer: pair.Answer, topic: GeneralSubject})
	}

	rng.Shuffle(len(sources), func(i, j int) { sources[i], sources[j] = sources[j], sources[i] })
	if len(sources) > count {
		sources = sources[:count]
	}

	questions := make([]models.QuizQuestion, 0, len(sources))
	for i, src := range sources {
		options, correct := buildOptions(src.answer, sources, rng)
		questions = append(questions, models.QuizQuestion{
			ID:            i,
			Question:      src.question,
			Options:       options,
			CorrectAnswer: correct,
			Topic:         src.topic,
			Explanation:   src.answer,
		})
	}
	return questions
}

// buildOptions returns the shuffled options and the index of the correct one.
func buildOptions(correct string, sources []quizSource, rng *rand.Rand) ([]string, int) {
	options := []string{correct}
	seen := map[string]bool{correct: true}
	for _, i := range rng.Perm(len(sources)) {
		if len(options) == OptionsPerQuestion {
			break
		}
		answer := sources[i].answer
		if seen[answer] {
			continue
		}
		seen[answer] = true
		options = append(options, answer)
	}
	for len(options) < OptionsPerQuestion {
		options = append(options, fmt.Sprintf("Option %d", len(options)))
	}

	shuffled := make([]string, len(options))
	correctIndex := 0
	for i, from := range rng.Perm(len(options)) {
		shuffled[i] = options[from]
		if from == 0 {
			correctIndex = i
		}
	}
	return shuffled, correctIndex
}

type Result struct {
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Grade      string `json:"grade"`
}

// Score grades answers, given as option indexes aligned with questions.
// Missing answers count as wrong.
func Score(questions []models.QuizQuestion, answers []int) Result {
	correct := make([]int, len(questions))
	for i, q := range questions {
		correct[i] = q.CorrectAnswer
	}
	return ScoreAnswers(correct, answers)
}

// ScoreAnswers grades answers against the correct option indexes.
func ScoreAnswers(correct, answers []int) Result {
	result := Result{Total: len(correct)}
	for i, want := range correct {
		if i < len(answers) && answers[i] == want {
			result.Correct++
		}
	}
	if result.Total > 0 {
		result.Percentage = int(math.Round(float64(result.Correct) / float64(result.Total) * 100))
	}
	result.Grade = Grade(result.Percentage)
	return result
}

func Grade(percentage int) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	default:
		return "F"
	}
}
