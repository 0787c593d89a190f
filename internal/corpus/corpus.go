// Package corpus loads the question/answer corpus and the subject trees the
// matchers resolve queries against. A Corpus is read-only once built.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xaenox/tutor-bot/internal/models"
	"go.uber.org/zap"
)

var ErrNoValidEntries = errors.New("no valid Q&A entries found")

// DefaultSubjectFiles are probed next to the primary corpus file.
var DefaultSubjectFiles = []string{"Chemistry.json", "Physics.json", "Biology.json"}

// FallbackPairs is served when the primary corpus cannot be loaded.
var FallbackPairs = []models.QAPair{
	{Question: "hi", Answer: "Hello! I'm your Studix AI Tutor."},
	{Question: "hello", Answer: "Hi there!"},
	{Question: "bye", Answer: "Goodbye! Keep studying."},
	{Question: "help", Answer: "Ask me about Science or Social Studies."},
}

type Corpus struct {
	pairs        []models.QAPair
	subjects     map[string]*models.Subject
	subjectOrder []string
	notice       string
}

// New builds a corpus from already decoded data, keying each subject by its
// name. Subjects keep the given order.
func New(pairs []models.QAPair, subjects []models.Subject) *Corpus {
	keys := make([]string, len(subjects))
	for i, s := range subjects {
		keys[i] = s.Subject
	}
	return newCorpus(pairs, keys, subjects)
}

func newCorpus(pairs []models.QAPair, keys []string, subjects []models.Subject) *Corpus {
	c := &Corpus{
		pairs:    append([]models.QAPair(nil), pairs...),
		subjects: make(map[string]*models.Subject, len(subjects)),
	}
	for i := range subjects {
		s := subjects[i]
		if _, exists := c.subjects[keys[i]]; !exists {
			c.subjectOrder = append(c.subjectOrder, keys[i])
		}
		c.subjects[keys[i]] = &s
	}
	return c
}

func (c *Corpus) Pairs() []models.QAPair {
	return c.pairs
}

// Subjects returns the loaded subject trees in load order.
func (c *Corpus) Subjects() []*models.Subject {
	out := make([]*models.Subject, 0, len(c.subjectOrder))
	for _, name := range c.subjectOrder {
		out = append(out, c.subjects[name])
	}
	return out
}

// SubjectNames returns the keys Subject accepts, in load order.
func (c *Corpus) SubjectNames() []string {
	return append([]string(nil), c.subjectOrder...)
}

func (c *Corpus) Subject(name string) (*models.Subject, bool) {
	s, ok := c.subjects[name]
	return s, ok
}

// Degraded reports whether the built-in fallback corpus is in use.
func (c *Corpus) Degraded() bool {
	return c.notice != ""
}

// Notice is the user-facing message describing why the corpus is degraded.
func (c *Corpus) Notice() string {
	return c.notice
}

type Loader struct {
	fsys         fs.FS
	dataFile     string
	subjectFiles []string
	validate     *validator.Validate
	logger       *zap.Logger
}

func NewLoader(fsys fs.FS, dataFile string, subjectFiles []string, logger *zap.Logger) *Loader {
	if len(subjectFiles) == 0 {
		subjectFiles = DefaultSubjectFiles
	}
	return &Loader{
		fsys:         fsys,
		dataFile:     dataFile,
		subjectFiles: subjectFiles,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Load reads the primary corpus and every available subject file.
func (l *Loader) Load() (*Corpus, error) {
	pairs, err := l.loadPairs()
	if err != nil {
		return nil, err
	}
	keys, subjects := l.loadSubjects()
	return newCorpus(pairs, keys, subjects), nil
}

// LoadOrFallback never fails: on a load failure it returns the built-in
// fallback corpus carrying a notice for the user.
func (l *Loader) LoadOrFallback() *Corpus {
	c, err := l.Load()
	if err == nil {
		return c
	}

	l.logger.Error("Failed to load corpus, using fallback responses",
		zap.Error(err),
		zap.String("file", l.dataFile))

	keys, subjects := l.loadSubjects()
	c = newCorpus(FallbackPairs, keys, subjects)
	c.notice = fmt.Sprintf("⚠️ Error: %s\nUsing fallback responses.", err.Error())
	return c
}

func (l *Loader) loadPairs() ([]models.QAPair, error) {
	raw, err := fs.ReadFile(l.fsys, l.dataFile)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", l.dataFile, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array: %w", l.dataFile, err)
	}

	pairs := make([]models.QAPair, 0, len(entries))
	for _, entry := range entries {
		var pair models.QAPair
		if err := json.Unmarshal(entry, &pair); err != nil {
			continue
		}
		if err := l.validate.Struct(pair); err != nil {
			continue
		}
		pairs = append(pairs, pair)
	}

	if len(pairs) == 0 {
		return nil, ErrNoValidEntries
	}

	l.logger.Info("Loaded corpus",
		zap.String("file", l.dataFile),
		zap.Int("entries", len(entries)),
		zap.Int("valid", len(pairs)))

	return pairs, nil
}

// loadSubjects keys every subject by its file name ("Physics.json" -> "Physics").
func (l *Loader) loadSubjects() ([]string, []models.Subject) {
	dir := path.Dir(l.dataFile)

	var (
		keys     []string
		subjects []models.Subject
	)
	for _, file := range l.subjectFiles {
		name := path.Join(dir, file)
		raw, err := fs.ReadFile(l.fsys, name)
		if err != nil {
			l.logger.Debug("Subject file not available", zap.String("file", name), zap.Error(err))
			continue
		}

		var subject models.Subject
		if err := json.Unmarshal(raw, &subject); err != nil {
			l.logger.Warn("Skipping malformed subject file", zap.String("file", name), zap.Error(err))
			continue
		}

		key := strings.TrimSuffix(file, path.Ext(file))
		if subject.Subject == "" {
			subject.Subject = key
		}
		keys = append(keys, key)
		subjects = append(subjects, subject)
	}
	return keys, subjects
}
