package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"studyflow/internal/apperr"
	"studyflow/internal/generation"
	"studyflow/internal/media"
	"studyflow/internal/ocr"
	"studyflow/internal/prompts"
	"studyflow/internal/transcription"
)

const (
	SourceDocument = "document"
	SourceVideo    = "video"
	SourceAudio    = "audio"
)

type Timings struct {
	Extraction    time.Duration `json:"extraction"`
	Acquisition   time.Duration `json:"acquisition"`
	Transcription time.Duration `json:"transcription"`
	Generation    time.Duration `json:"generation"`
	Total         time.Duration `json:"total"`
}

// Note is the artifact produced by the document, video and audio flows.
type Note struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	SourceLabel string `json:"source_label"`
	// Approximate marks notes built from a synthetic transcript.
	Approximate   bool                  `json:"approximate"`
	Disclosure    string                `json:"disclosure,omitempty"`
	QuotaFallback bool                  `json:"quota_fallback"`
	Document      *DocumentInfo         `json:"document,omitempty"`
	Video         *media.Info           `json:"video,omitempty"`
	Transcript    *transcription.Result `json:"transcript,omitempty"`
	Timings       Timings               `json:"-"`
}

type DocumentInfo struct {
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	Size        int    `json:"size"`
	CharCount   int    `json:"char_count"`
	WordCount   int    `json:"word_count"`
	Placeholder bool   `json:"placeholder"`
}

type DocumentInput struct {
	Data     []byte
	FileName string
	UserID   string
}

type ImageInput struct {
	Data     []byte
	FileName string
	UserID   string
}

type VideoInput struct {
	URL    string
	UserID string
}

type AudioInput struct {
	Data            []byte
	FileName        string
	DurationSeconds float64
	UserID          string
}

// Document extracts text, generates study notes and a title.
func (s *Service) Document(ctx context.Context, in DocumentInput) (Note, error) {
	return runFlow(ctx, s, FlowDocument, in.UserID, func(ctx context.Context) (Note, error) {
		started := time.Now()
		doc, err := s.extractor.Extract(ctx, in.Data, in.FileName)
		if err != nil {
			return Note{}, apperr.AtStage(err, apperr.StageExtract)
		}
		extracted := time.Since(started)

		genStarted := time.Now()
		out := s.generator.Generate(ctx, generation.Request{
			Prompt: prompts.DocumentNotes(doc.Text, doc.FileName),
			Task:   generation.TaskDocumentAnalysis,
		})
		if !out.Usable() {
			return Note{}, out.Err()
		}

		title := s.documentTitle(ctx, doc.Text, doc.FileName)
		return Note{
			Title:         title,
			Content:       out.Text,
			Source:        SourceDocument,
			SourceLabel:   doc.SourceLabel,
			QuotaFallback: out.Status == generation.StatusQuotaFallback,
			Document: &DocumentInfo{
				FileName:    doc.FileName,
				FileType:    string(doc.FileType),
				Size:        doc.Size,
				CharCount:   doc.CharCount,
				WordCount:   doc.WordCount,
				Placeholder: doc.Placeholder,
			},
			Timings: Timings{
				Extraction: extracted,
				Generation: time.Since(genStarted),
				Total:      time.Since(started),
			},
		}, nil
	})
}

// documentTitle is best effort: any failure falls back to the file name.
func (s *Service) documentTitle(ctx context.Context, text, fileName string) string {
	fallback := "Study Notes - " + baseName(fileName)
	out := s.generator.Generate(ctx, generation.Request{
		Prompt: prompts.NoteTitle(text),
		Task:   generation.TaskTitle,
	})
	if out.Status != generation.StatusSuccess {
		s.logger.Debug("title generation unavailable, using file name", "file", fileName, "status", out.Status.String())
		return fallback
	}
	if title := prompts.CleanTitle(out.Text); title != "" {
		return title
	}
	return fallback
}

// Image runs OCR only. No text is a successful, empty result.
func (s *Service) Image(ctx context.Context, in ImageInput) (ocr.Result, error) {
	return runFlow(ctx, s, FlowImage, in.UserID, func(ctx context.Context) (ocr.Result, error) {
		res, err := s.images.Extract(ctx, in.Data, in.FileName)
		if err != nil {
			return ocr.Result{}, apperr.AtStage(err, apperr.StageOCR)
		}
		return res, nil
	})
}

// Video acquires audio, transcribes it and analyzes the transcript. When the
// host blocks automated access the flow continues from metadata with a
// synthetic transcript.
func (s *Service) Video(ctx context.Context, in VideoInput) (Note, error) {
	return runFlow(ctx, s, FlowVideo, in.UserID, func(ctx context.Context) (Note, error) {
		url, err := videoURL(in.URL)
		if err != nil {
			return Note{}, err
		}

		started := time.Now()
		info, tr, t, err := s.transcribeVideo(ctx, url, in.UserID)
		if err != nil {
			return Note{}, err
		}

		note, err := s.analyze(ctx, prompts.TranscriptSource{
			Title:       info.Title,
			SourceURL:   url,
			Description: info.Description,
		}, tr, &t)
		if err != nil {
			return Note{}, err
		}
		note.Title = info.Title + " - Video Analysis"
		note.Source = SourceVideo
		note.SourceLabel = "video:" + url
		note.Video = &info
		t.Total = time.Since(started)
		note.Timings = t
		return note, nil
	})
}

// VideoTranscript is the video flow without the analysis step.
type VideoTranscript struct {
	SourceLabel string               `json:"source_label"`
	Video       media.Info           `json:"video"`
	Transcript  transcription.Result `json:"transcript"`
	Timings     Timings              `json:"timings"`
}

// VideoTranscript acquires and transcribes a video without generating notes.
func (s *Service) VideoTranscript(ctx context.Context, in VideoInput) (VideoTranscript, error) {
	return runFlow(ctx, s, FlowTranscript, in.UserID, func(ctx context.Context) (VideoTranscript, error) {
		url, err := videoURL(in.URL)
		if err != nil {
			return VideoTranscript{}, err
		}

		started := time.Now()
		info, tr, t, err := s.transcribeVideo(ctx, url, in.UserID)
		if err != nil {
			return VideoTranscript{}, err
		}
		t.Total = time.Since(started)
		return VideoTranscript{
			SourceLabel: "video:" + url,
			Video:       info,
			Transcript:  tr,
			Timings:     t,
		}, nil
	})
}

func videoURL(raw string) (string, error) {
	if err := media.ValidateURL(raw); err != nil {
		return "", apperr.AtStage(err, apperr.StageValidate)
	}
	return media.CleanURL(raw), nil
}

// transcribeVideo downloads the audio of url and transcribes it. The audio
// file is gone by the time it returns.
func (s *Service) transcribeVideo(ctx context.Context, url, userID string) (media.Info, transcription.Result, Timings, error) {
	var t Timings
	started := time.Now()
	audio, err := s.media.Acquire(ctx, url)
	switch {
	case apperr.Is(err, apperr.BotDetected):
		s.logger.Warn("video host blocked download, continuing from metadata", "url", url, "user_id", userID, "error", err)
		info := s.media.Metadata(ctx, url)
		t.Acquisition = time.Since(started)
		return info, s.transcriber.Synthesize(info.Title, info.DurationSeconds, "audio unavailable: "+apperr.Classify(err).Message), t, nil
	case err != nil:
		return media.Info{}, transcription.Result{}, t, apperr.AtStage(err, apperr.StageAcquire)
	}
	defer func() {
		if cerr := audio.Close(); cerr != nil {
			s.logger.Warn("remove temp audio", "path", audio.Path, "error", cerr)
		}
	}()
	info := audio.Info
	t.Acquisition = time.Since(started)

	data, err := audio.Bytes()
	if err != nil {
		return info, transcription.Result{}, t, apperr.AtStage(apperr.Wrap(err, apperr.Internal, "could not read downloaded audio"), apperr.StageAcquire)
	}
	trStarted := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, transcription.Source{
		Audio:           data,
		FileName:        filepath.Base(audio.Path),
		Title:           info.Title,
		DurationSeconds: info.DurationSeconds,
	})
	if err != nil {
		return info, transcription.Result{}, t, apperr.AtStage(err, apperr.StageTranscribe)
	}
	t.Transcription = time.Since(trStarted)
	return info, tr, t, nil
}

// Audio transcribes an uploaded file and analyzes the transcript.
func (s *Service) Audio(ctx context.Context, in AudioInput) (Note, error) {
	return runFlow(ctx, s, FlowAudio, in.UserID, func(ctx context.Context) (Note, error) {
		if err := transcription.ValidateAudio(in.Data, in.FileName); err != nil {
			return Note{}, apperr.AtStage(err, apperr.StageValidate)
		}
		name := baseName(in.FileName)

		started := time.Now()
		tr, err := s.transcriber.Transcribe(ctx, transcription.Source{
			Audio:           in.Data,
			FileName:        in.FileName,
			Title:           name,
			DurationSeconds: in.DurationSeconds,
		})
		if err != nil {
			return Note{}, apperr.AtStage(err, apperr.StageTranscribe)
		}
		t := Timings{Transcription: time.Since(started)}

		note, err := s.analyze(ctx, prompts.TranscriptSource{Title: name}, tr, &t)
		if err != nil {
			return Note{}, err
		}
		note.Title = name + " - Audio Analysis"
		note.Source = SourceAudio
		note.SourceLabel = "audio:" + in.FileName
		t.Total = time.Since(started)
		note.Timings = t
		return note, nil
	})
}

func (s *Service) analyze(ctx context.Context, src prompts.TranscriptSource, tr transcription.Result, t *Timings) (Note, error) {
	started := time.Now()
	out := s.generator.Generate(ctx, generation.Request{
		Prompt: prompts.AnalyzeTranscript(src, tr.Text),
		Task:   generation.TaskVideoAnalysis,
	})
	t.Generation = time.Since(started)
	if !out.Usable() {
		return Note{}, out.Err()
	}

	note := Note{
		Content:       out.Text,
		QuotaFallback: out.Status == generation.StatusQuotaFallback,
		Transcript:    &tr,
	}
	if tr.IsMock {
		note.Approximate = true
		note.Disclosure = transcription.MockNotice
		note.Content = fmt.Sprintf("%s\n\n_%s_", strings.TrimRight(note.Content, "\n"), transcription.MockNotice)
	}
	return note, nil
}

func baseName(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return "Uploaded File"
	}
	return base
}
