package structured

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type Question struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	CorrectAnswer   int      `json:"correctAnswer"`
	IncorrectAnswer *int     `json:"incorrectAnswer"`
	Explanation     string   `json:"explanation"`
}

type Quiz struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Report describes how much of the model output survived validation.
type Report struct {
	Fallback bool   `json:"fallback"`
	Dropped  int    `json:"dropped"`
	Reason   string `json:"reason,omitempty"`
}

type QuizDefaults struct {
	Title       string
	Description string
}

const (
	defaultQuizTitle       = "Generated Quiz"
	defaultQuizDescription = "AI-generated quiz from note content"
)

func (d QuizDefaults) normalized() QuizDefaults {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = defaultQuizTitle
	}
	if strings.TrimSpace(d.Description) == "" {
		d.Description = defaultQuizDescription
	}
	return d
}

// FallbackQuiz is the single placeholder question used when nothing usable came back.
func FallbackQuiz(d QuizDefaults) Quiz {
	d = d.normalized()
	return Quiz{
		Title:       d.Title,
		Description: defaultQuizDescription,
		Questions: []Question{{
			Question:      "What is the main topic of this note?",
			Options:       []string{"Topic A", "Topic B", "Topic C", "Topic D"},
			CorrectAnswer: 0,
			Explanation:   "Based on the note content analysis.",
		}},
	}
}

// ParseQuiz never fails: invalid questions are dropped and an empty result
// is replaced by FallbackQuiz.
func ParseQuiz(raw string, d QuizDefaults) (Quiz, Report) {
	d = d.normalized()

	obj, err := extractObject(raw)
	if err != nil {
		return FallbackQuiz(d), Report{Fallback: true, Reason: err.Error()}
	}
	title, description, items, err := decodeItems(obj, "questions")
	if err != nil {
		return FallbackQuiz(d), Report{Fallback: true, Reason: "invalid quiz structure: " + err.Error()}
	}

	quiz := Quiz{Title: title, Description: description}
	if quiz.Title == "" {
		quiz.Title = d.Title
	}
	if quiz.Description == "" {
		quiz.Description = d.Description
	}

	var report Report
	for _, item := range items {
		q, ok := validateQuestion(item)
		if !ok {
			report.Dropped++
			continue
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if len(quiz.Questions) == 0 {
		report.Fallback = true
		if len(items) == 0 {
			report.Reason = "response has no questions"
		} else {
			report.Reason = "no question passed validation"
		}
		return FallbackQuiz(d), report
	}
	return quiz, report
}

type rawQuestion struct {
	Question        string          `json:"question"`
	Options         []string        `json:"options"`
	CorrectAnswer   json.RawMessage `json:"correctAnswer"`
	IncorrectAnswer json.RawMessage `json:"incorrectAnswer"`
	Explanation     json.RawMessage `json:"explanation"`
}

func validateQuestion(item json.RawMessage) (Question, bool) {
	var rq rawQuestion
	if err := json.Unmarshal(item, &rq); err != nil {
		return Question{}, false
	}
	q := Question{
		Question:    strings.TrimSpace(rq.Question),
		Explanation: rawString(rq.Explanation),
	}
	if q.Question == "" || len(rq.Options) < 2 {
		return Question{}, false
	}
	for _, opt := range rq.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return Question{}, false
		}
		q.Options = append(q.Options, opt)
	}

	correct, ok := resolveIndex(rq.CorrectAnswer, q.Options)
	if !ok {
		return Question{}, false
	}
	q.CorrectAnswer = correct
	if incorrect, ok := resolveIndex(rq.IncorrectAnswer, q.Options); ok && incorrect != correct {
		q.IncorrectAnswer = &incorrect
	}
	return q, true
}

// resolveIndex accepts an integer index, a numeric string, a letter label
// (A, B, ...), or the option text itself.
func resolveIndex(raw json.RawMessage, options []string) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != math.Trunc(n) {
			return 0, false
		}
		return inRange(int(n), len(options))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return inRange(i, len(options))
	}
	if label := strings.TrimRight(s, ").:"); len(label) == 1 {
		c := label[0] | 0x20
		if c >= 'a' && c <= 'z' {
			if i, ok := inRange(int(c-'a'), len(options)); ok {
				return i, true
			}
		}
	}
	for i, opt := range options {
		if strings.EqualFold(opt, s) {
			return i, true
		}
	}
	return 0, false
}

func inRange(i, n int) (int, bool) {
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
