package models

import (
	"bytes"
	"encoding/json"
)

// QAPair is a single question/answer entry of the corpus
type QAPair struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// Subject is the chapter/topic tree of one subject file
type Subject struct {
	Subject  string    `json:"subject"`
	Chapters []Chapter `json:"chapters"`
}

type Chapter struct {
	ChapterNo   ChapterNo `json:"chapter_no"`
	ChapterName string    `json:"chapter_name"`
	Topics      []Topic   `json:"topics"`
}

type Topic struct {
	Topic     string     `json:"topic"`
	Brief     string     `json:"brief,omitempty"`
	Subtopics []Subtopic `json:"subtopics,omitempty"`
	Examples  []string   `json:"examples,omitempty"`
}

type Subtopic struct {
	Name        string `json:"name"`
	Explanation string `json:"explanation,omitempty"`
}

// ChapterNo accepts both numeric and string chapter numbers in subject files.
type ChapterNo string

func (n *ChapterNo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = ChapterNo(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = ChapterNo(num.String())
	return nil
}

func (n ChapterNo) MarshalJSON() ([]byte, error) {
	if _, err := json.Number(n).Int64(); err == nil {
		return []byte(n), nil
	}
	return json.Marshal(string(n))
}
