package model

import (
	"studyflow/internal/generation"
	"studyflow/internal/media"
	"studyflow/internal/ocr"
	"studyflow/internal/pipeline"
	"studyflow/internal/structured"
	"studyflow/internal/transcription"
)

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool                    `json:"ok"`
	ServiceName string                  `json:"service_name,omitempty"`
	Generation  generation.HealthReport `json:"generation"`
	OCR         ocr.Health              `json:"ocr"`
}

type VideoRequest struct {
	URL string `json:"url"`
}

type QuizRequest struct {
	Content       string `json:"content,omitempty"`
	Topic         string `json:"topic,omitempty"`
	Title         string `json:"title,omitempty"`
	Category      string `json:"category,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	QuestionCount int    `json:"questionCount,omitempty"`
}

type FlashcardsRequest struct {
	Content   string `json:"content"`
	Title     string `json:"title,omitempty"`
	Category  string `json:"category,omitempty"`
	CardCount int    `json:"cardCount,omitempty"`
}

type AssistRequest struct {
	Task             string `json:"task"`
	Content          string `json:"content,omitempty"`
	Context          string `json:"context,omitempty"`
	Subject          string `json:"subject,omitempty"`
	Timeframe        string `json:"timeframe,omitempty"`
	Goals            string `json:"goals,omitempty"`
	Responses        string `json:"responses,omitempty"`
	CorrectAnswers   string `json:"correctAnswers,omitempty"`
	VideoTitle       string `json:"videoTitle,omitempty"`
	VideoDescription string `json:"videoDescription,omitempty"`
	Transcript       string `json:"transcript,omitempty"`
}

type IntentRequest struct {
	Message       string `json:"message"`
	UserName      string `json:"userName,omitempty"`
	Level         int    `json:"level,omitempty"`
	ResponseStyle string `json:"responseStyle,omitempty"`
}

type TimingsMS struct {
	Extraction    int64 `json:"extraction,omitempty"`
	Acquisition   int64 `json:"acquisition,omitempty"`
	Transcription int64 `json:"transcription,omitempty"`
	Generation    int64 `json:"generation"`
	Total         int64 `json:"total"`
}

type NoteResponse struct {
	Title         string                 `json:"title"`
	Content       string                 `json:"content"`
	Source        string                 `json:"source"`
	SourceLabel   string                 `json:"source_label"`
	Approximate   bool                   `json:"approximate"`
	Disclosure    string                 `json:"disclosure,omitempty"`
	QuotaFallback bool                   `json:"quota_fallback"`
	Document      *pipeline.DocumentInfo `json:"document,omitempty"`
	Video         *media.Info            `json:"video,omitempty"`
	Transcript    *transcription.Result  `json:"transcript,omitempty"`
	TimingsMS     TimingsMS              `json:"timings_ms"`
}

type ImageTextResponse struct {
	Text        string  `json:"text"`
	SourceLabel string  `json:"source_label"`
	FileName    string  `json:"file_name"`
	MimeType    string  `json:"mime_type"`
	Engine      string  `json:"engine"`
	CharCount   int     `json:"char_count"`
	WordCount   int     `json:"word_count"`
	Confidence  float64 `json:"confidence"`
	Empty       bool    `json:"empty"`
	Message     string  `json:"message"`
}

type QuizResponse struct {
	structured.Quiz
	Fallback      bool   `json:"fallback"`
	Dropped       int    `json:"dropped"`
	Reason        string `json:"reason,omitempty"`
	QuotaFallback bool   `json:"quota_fallback"`
}

type FlashcardsResponse struct {
	structured.FlashcardSet
	Fallback      bool   `json:"fallback"`
	Dropped       int    `json:"dropped"`
	Reason        string `json:"reason,omitempty"`
	QuotaFallback bool   `json:"quota_fallback"`
}

type IntentResponse struct {
	structured.Intent
	Fallback      bool   `json:"fallback"`
	Reason        string `json:"reason,omitempty"`
	QuotaFallback bool   `json:"quota_fallback"`
}

type TranscriptResponse struct {
	SourceLabel string               `json:"source_label"`
	Video       media.Info           `json:"video"`
	Transcript  transcription.Result `json:"transcript"`
	TimingsMS   TimingsMS            `json:"timings_ms"`
}

type AssistResponse struct {
	Task          string `json:"task"`
	Text          string `json:"text"`
	QuotaFallback bool   `json:"quota_fallback"`
}

func NoteFromPipeline(n pipeline.Note) NoteResponse {
	return NoteResponse{
		Title:         n.Title,
		Content:       n.Content,
		Source:        n.Source,
		SourceLabel:   n.SourceLabel,
		Approximate:   n.Approximate,
		Disclosure:    n.Disclosure,
		QuotaFallback: n.QuotaFallback,
		Document:      n.Document,
		Video:         n.Video,
		Transcript:    n.Transcript,
		TimingsMS: TimingsMS{
			Extraction:    n.Timings.Extraction.Milliseconds(),
			Acquisition:   n.Timings.Acquisition.Milliseconds(),
			Transcription: n.Timings.Transcription.Milliseconds(),
			Generation:    n.Timings.Generation.Milliseconds(),
			Total:         n.Timings.Total.Milliseconds(),
		},
	}
}

func ImageTextFromOCR(r ocr.Result) ImageTextResponse {
	return ImageTextResponse{
		Text:        r.Text,
		SourceLabel: r.SourceLabel,
		FileName:    r.FileName,
		MimeType:    r.MimeType,
		Engine:      r.Engine,
		CharCount:   r.CharCount,
		WordCount:   r.WordCount,
		Confidence:  r.Confidence,
		Empty:       r.Empty,
		Message:     r.Message,
	}
}

func QuizFromPipeline(r pipeline.QuizResult) QuizResponse {
	return QuizResponse{
		Quiz:          r.Quiz,
		Fallback:      r.Report.Fallback,
		Dropped:       r.Report.Dropped,
		Reason:        r.Report.Reason,
		QuotaFallback: r.QuotaFallback,
	}
}

func FlashcardsFromPipeline(r pipeline.FlashcardsResult) FlashcardsResponse {
	return FlashcardsResponse{
		FlashcardSet:  r.Flashcards,
		Fallback:      r.Report.Fallback,
		Dropped:       r.Report.Dropped,
		Reason:        r.Report.Reason,
		QuotaFallback: r.QuotaFallback,
	}
}

func AssistFromPipeline(r pipeline.AssistResult) AssistResponse {
	return AssistResponse{Task: string(r.Task), Text: r.Text, QuotaFallback: r.QuotaFallback}
}

func IntentFromPipeline(r pipeline.IntentResult) IntentResponse {
	return IntentResponse{
		Intent:        r.Intent,
		Fallback:      r.Report.Fallback,
		Reason:        r.Report.Reason,
		QuotaFallback: r.QuotaFallback,
	}
}

func TranscriptFromPipeline(r pipeline.VideoTranscript) TranscriptResponse {
	return TranscriptResponse{
		SourceLabel: r.SourceLabel,
		Video:       r.Video,
		Transcript:  r.Transcript,
		TimingsMS: TimingsMS{
			Acquisition:   r.Timings.Acquisition.Milliseconds(),
			Transcription: r.Timings.Transcription.Milliseconds(),
			Total:         r.Timings.Total.Milliseconds(),
		},
	}
}

func (r QuizRequest) Input(userID string) pipeline.QuizInput {
	return pipeline.QuizInput{
		Content:       r.Content,
		Topic:         r.Topic,
		Title:         r.Title,
		Category:      r.Category,
		Difficulty:    r.Difficulty,
		QuestionCount: r.QuestionCount,
		UserID:        userID,
	}
}

func (r FlashcardsRequest) Input(userID string) pipeline.FlashcardsInput {
	return pipeline.FlashcardsInput{
		Content:   r.Content,
		Title:     r.Title,
		Category:  r.Category,
		CardCount: r.CardCount,
		UserID:    userID,
	}
}

func (r AssistRequest) Input(userID string) pipeline.AssistInput {
	return pipeline.AssistInput{
		Task:             generation.TaskKind(r.Task),
		Content:          r.Content,
		Context:          r.Context,
		Subject:          r.Subject,
		Timeframe:        r.Timeframe,
		Goals:            r.Goals,
		Responses:        r.Responses,
		CorrectAnswers:   r.CorrectAnswers,
		VideoTitle:       r.VideoTitle,
		VideoDescription: r.VideoDescription,
		Transcript:       r.Transcript,
		UserID:           userID,
	}
}

func (r IntentRequest) Input(userID string) pipeline.IntentInput {
	return pipeline.IntentInput{
		Message:       r.Message,
		UserName:      r.UserName,
		Level:         r.Level,
		ResponseStyle: r.ResponseStyle,
		UserID:        userID,
	}
}
