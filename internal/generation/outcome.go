package generation

import (
	"studyflow/internal/apperr"
)

type TaskKind string

const (
	TaskChat             TaskKind = "chat"
	TaskEnhance          TaskKind = "enhance"
	TaskSummarize        TaskKind = "summarize"
	TaskQuestions        TaskKind = "questions"
	TaskFlashcards       TaskKind = "flashcards"
	TaskQuiz             TaskKind = "quiz"
	TaskExplain          TaskKind = "explain"
	TaskStudyPlan        TaskKind = "study_plan"
	TaskAssess           TaskKind = "assess"
	TaskVideoAnalysis    TaskKind = "video_analysis"
	TaskDocumentAnalysis TaskKind = "document_analysis"
	TaskTitle            TaskKind = "title"
	TaskHealth           TaskKind = "health"
	TaskIntent           TaskKind = "intent"
)

type Request struct {
	Prompt string
	Task   TaskKind
}

type Status int

const (
	StatusSuccess Status = iota
	StatusQuotaFallback
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusQuotaFallback:
		return "quota_fallback"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Cause records why an attempt ended the way it did.
type Cause string

const (
	CauseNone        Cause = ""
	CauseQuota       Cause = "quota"
	CauseRateLimit   Cause = "rate_limit"
	CauseServer      Cause = "server_error"
	CauseOverloaded  Cause = "overloaded"
	CauseBadRequest  Cause = "bad_request"
	CauseAuth        Cause = "auth"
	CauseRejected    Cause = "rejected"
	CauseNetwork     Cause = "network"
	CauseTimeout     Cause = "timeout"
	CauseCanceled    Cause = "canceled"
	CauseCircuitOpen Cause = "circuit_open"
	CauseEmptyPrompt Cause = "empty_prompt"
)

// Outcome is the result of one Generate call. Success and QuotaFallback both
// carry usable text; Failure carries a kind and message.
type Outcome struct {
	Status   Status
	Text     string
	Kind     apperr.Kind
	Cause    Cause
	Message  string
	Attempts int
	// Category is set for QuotaFallback outcomes.
	Category FallbackCategory
}

func (o Outcome) Usable() bool {
	return o.Status == StatusSuccess || o.Status == StatusQuotaFallback
}

func (o Outcome) Err() error {
	if o.Usable() {
		return nil
	}
	e := apperr.New(o.Kind, o.Message)
	e.Stage = apperr.StageGenerate
	return e
}
