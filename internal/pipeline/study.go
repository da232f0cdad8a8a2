package pipeline

import (
	"context"
	"fmt"
	"strings"

	"studyflow/internal/apperr"
	"studyflow/internal/generation"
	"studyflow/internal/prompts"
	"studyflow/internal/structured"
)

const (
	defaultQuestionCount = 5
	defaultCardCount     = 10
	defaultDifficulty    = "medium"
	defaultCategory      = "General"

	maxTopicQuestions = 20
	maxNoteItems      = 50
)

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

type QuizInput struct {
	// Content is the note text. When empty, Topic drives a topic quiz.
	Content       string
	Topic         string
	Title         string
	Category      string
	Difficulty    string
	QuestionCount int
	UserID        string
}

type QuizResult struct {
	Quiz          structured.Quiz   `json:"quiz"`
	Report        structured.Report `json:"report"`
	QuotaFallback bool              `json:"quota_fallback"`
}

type FlashcardsInput struct {
	Content   string
	Title     string
	Category  string
	CardCount int
	UserID    string
}

type FlashcardsResult struct {
	Flashcards    structured.FlashcardSet `json:"flashcards"`
	Report        structured.Report       `json:"report"`
	QuotaFallback bool                    `json:"quota_fallback"`
}

// Quiz generates a quiz from note content, or from a topic when no content
// is given. The result always has at least one question.
func (s *Service) Quiz(ctx context.Context, in QuizInput) (QuizResult, error) {
	return runFlow(ctx, s, FlowQuiz, in.UserID, func(ctx context.Context) (QuizResult, error) {
		prompt, defaults, err := quizPrompt(in)
		if err != nil {
			return QuizResult{}, apperr.AtStage(err, apperr.StageValidate)
		}

		out := s.generator.Generate(ctx, generation.Request{Prompt: prompt, Task: generation.TaskQuiz})
		if !out.Usable() {
			return QuizResult{}, out.Err()
		}

		quiz, report := structured.ParseQuiz(out.Text, defaults)
		s.logParse(FlowQuiz, in.UserID, len(quiz.Questions), report)
		return QuizResult{
			Quiz:          quiz,
			Report:        report,
			QuotaFallback: out.Status == generation.StatusQuotaFallback,
		}, nil
	})
}

func quizPrompt(in QuizInput) (string, structured.QuizDefaults, error) {
	content := strings.TrimSpace(in.Content)
	difficulty := strings.ToLower(strings.TrimSpace(in.Difficulty))
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	if !difficulties[difficulty] {
		return "", structured.QuizDefaults{}, apperr.New(apperr.InvalidInput, "difficulty must be easy, medium, or hard")
	}

	if content == "" {
		topic := strings.TrimSpace(in.Topic)
		if topic == "" {
			return "", structured.QuizDefaults{}, apperr.New(apperr.InvalidInput, "note content or a topic is required")
		}
		count := in.QuestionCount
		if count == 0 {
			count = defaultQuestionCount
		}
		if count < 1 || count > maxTopicQuestions {
			return "", structured.QuizDefaults{}, apperr.New(apperr.InvalidInput, fmt.Sprintf("question count must be between 1 and %d", maxTopicQuestions))
		}
		defaults := structured.QuizDefaults{
			Title:       orDefault(in.Title, topic+" Quiz"),
			Description: fmt.Sprintf("A %s quiz on %s", difficulty, topic),
		}
		return prompts.TopicQuiz(topic, difficulty, count), defaults, nil
	}

	count, err := itemCount(in.QuestionCount, defaultQuestionCount, "question count")
	if err != nil {
		return "", structured.QuizDefaults{}, err
	}
	opts := prompts.QuizOptions{
		Title:         orDefault(in.Title, "Generated Quiz"),
		Category:      orDefault(in.Category, defaultCategory),
		Difficulty:    difficulty,
		QuestionCount: count,
	}
	return prompts.QuizFromNote(content, opts), structured.QuizDefaults{Title: opts.Title}, nil
}

// Flashcards generates a flashcard set from note content. The result always
// has at least one card.
func (s *Service) Flashcards(ctx context.Context, in FlashcardsInput) (FlashcardsResult, error) {
	return runFlow(ctx, s, FlowFlashcards, in.UserID, func(ctx context.Context) (FlashcardsResult, error) {
		content := strings.TrimSpace(in.Content)
		if content == "" {
			return FlashcardsResult{}, apperr.AtStage(apperr.New(apperr.InvalidInput, "note content is required"), apperr.StageValidate)
		}
		count, err := itemCount(in.CardCount, defaultCardCount, "card count")
		if err != nil {
			return FlashcardsResult{}, apperr.AtStage(err, apperr.StageValidate)
		}
		opts := prompts.FlashcardOptions{
			Title:     orDefault(in.Title, "Generated Flashcards"),
			Category:  orDefault(in.Category, defaultCategory),
			CardCount: count,
		}

		out := s.generator.Generate(ctx, generation.Request{
			Prompt: prompts.FlashcardsFromNote(content, opts),
			Task:   generation.TaskFlashcards,
		})
		if !out.Usable() {
			return FlashcardsResult{}, out.Err()
		}

		set, report := structured.ParseFlashcards(out.Text, structured.FlashcardDefaults{Title: opts.Title, Category: opts.Category})
		s.logParse(FlowFlashcards, in.UserID, len(set.Cards), report)
		return FlashcardsResult{
			Flashcards:    set,
			Report:        report,
			QuotaFallback: out.Status == generation.StatusQuotaFallback,
		}, nil
	})
}

func (s *Service) logParse(flow, userID string, items int, report structured.Report) {
	if report.Fallback {
		s.logger.Warn("structured output unusable, returned placeholder",
			"flow", flow,
			"user_id", userID,
			"kind", apperr.ValidationFailed,
			"dropped", report.Dropped,
			"reason", report.Reason,
		)
		return
	}
	s.logger.Debug("structured output parsed", "flow", flow, "items", items, "dropped", report.Dropped)
}

type AssistInput struct {
	Task             generation.TaskKind
	Content          string
	Context          string
	Subject          string
	Timeframe        string
	Goals            string
	Responses        string
	CorrectAnswers   string
	// video_analysis works from whichever of these the caller has.
	VideoTitle       string
	VideoDescription string
	Transcript       string
	UserID           string
}

type AssistResult struct {
	Task          generation.TaskKind `json:"task"`
	Text          string              `json:"text"`
	QuotaFallback bool                `json:"quota_fallback"`
}

// Assist runs one of the free-text study tasks.
func (s *Service) Assist(ctx context.Context, in AssistInput) (AssistResult, error) {
	return runFlow(ctx, s, FlowAssist, in.UserID, func(ctx context.Context) (AssistResult, error) {
		prompt, err := assistPrompt(in)
		if err != nil {
			return AssistResult{}, apperr.AtStage(err, apperr.StageValidate)
		}
		out := s.generator.Generate(ctx, generation.Request{Prompt: prompt, Task: in.Task})
		if !out.Usable() {
			return AssistResult{}, out.Err()
		}
		return AssistResult{
			Task:          in.Task,
			Text:          out.Text,
			QuotaFallback: out.Status == generation.StatusQuotaFallback,
		}, nil
	})
}

func assistPrompt(in AssistInput) (string, error) {
	content := strings.TrimSpace(in.Content)
	required := func(value, what string) error {
		if strings.TrimSpace(value) == "" {
			return apperr.New(apperr.InvalidInput, what+" is required")
		}
		return nil
	}

	switch in.Task {
	case generation.TaskChat:
		return prompts.Chat(content), required(content, "message")
	case generation.TaskEnhance:
		return prompts.EnhanceNote(content), required(content, "note content")
	case generation.TaskSummarize:
		return prompts.SummarizeNote(content), required(content, "note content")
	case generation.TaskQuestions:
		return prompts.StudyQuestions(content), required(content, "note content")
	case generation.TaskFlashcards:
		return prompts.Flashcards(content), required(content, "note content")
	case generation.TaskExplain:
		return prompts.ExplainConcept(content, strings.TrimSpace(in.Context)), required(content, "concept")
	case generation.TaskStudyPlan:
		if err := required(in.Subject, "subject"); err != nil {
			return "", err
		}
		return prompts.StudyPlan(strings.TrimSpace(in.Subject), orDefault(in.Timeframe, "flexible"), orDefault(in.Goals, "general understanding")), nil
	case generation.TaskAssess:
		if err := required(in.Responses, "responses"); err != nil {
			return "", err
		}
		return prompts.AssessLearning(strings.TrimSpace(in.Responses), strings.TrimSpace(in.CorrectAnswers)), required(in.CorrectAnswers, "correct answers")
	case generation.TaskVideoAnalysis:
		if err := required(in.VideoTitle+in.VideoDescription+in.Transcript, "video title, description or transcript"); err != nil {
			return "", err
		}
		return prompts.AnalyzeVideo(prompts.VideoFields{
			Title:       in.VideoTitle,
			Description: in.VideoDescription,
			Transcript:  in.Transcript,
		}), nil
	default:
		return "", apperr.New(apperr.InvalidInput, fmt.Sprintf("unsupported task %q", in.Task))
	}
}

func itemCount(n, def int, what string) (int, error) {
	if n == 0 {
		return def, nil
	}
	if n < 0 || n > maxNoteItems {
		return 0, apperr.New(apperr.InvalidInput, fmt.Sprintf("%s must be between 1 and %d", what, maxNoteItems))
	}
	return n, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
