package structured

import (
	"encoding/json"
	"strings"
)

const (
	ActionCreateNote       = "create_note"
	ActionCreateQuiz       = "create_quiz"
	ActionCreateFlashcards = "create_flashcards"
	ActionAnalyzeVideo     = "analyze_video"
	ActionProcessDocument  = "process_document"
	ActionExplainConcept   = "explain_concept"
	ActionChat             = "chat"
)

var knownActions = map[string]bool{
	ActionCreateNote:       true,
	ActionCreateQuiz:       true,
	ActionCreateFlashcards: true,
	ActionAnalyzeVideo:     true,
	ActionProcessDocument:  true,
	ActionExplainConcept:   true,
	ActionChat:             true,
}

var confidences = map[string]bool{"high": true, "medium": true, "low": true}

// Intent is the action a chat message asks for.
type Intent struct {
	Action     string         `json:"action"`
	Confidence string         `json:"confidence"`
	Parameters map[string]any `json:"parameters"`
	Response   string         `json:"response"`
}

// ParseIntent reads an action detection reply. Output that is not a JSON
// object becomes a low-confidence chat intent carrying the raw text; an
// unknown action is treated as chat.
func ParseIntent(raw string) (Intent, Report) {
	fallback := Intent{
		Action:     ActionChat,
		Confidence: "low",
		Parameters: map[string]any{},
		Response:   strings.TrimSpace(raw),
	}

	obj, err := extractObject(raw)
	if err != nil {
		return fallback, Report{Fallback: true, Reason: err.Error()}
	}
	var in Intent
	if err := json.Unmarshal(obj, &in); err != nil {
		return fallback, Report{Fallback: true, Reason: err.Error()}
	}

	var report Report
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	if !knownActions[in.Action] {
		if in.Action != "" {
			report.Reason = "unknown action " + in.Action
		}
		in.Action = ActionChat
	}
	in.Confidence = strings.ToLower(strings.TrimSpace(in.Confidence))
	if !confidences[in.Confidence] {
		in.Confidence = "low"
	}
	if in.Parameters == nil {
		in.Parameters = map[string]any{}
	}
	in.Response = strings.TrimSpace(in.Response)
	return in, report
}
