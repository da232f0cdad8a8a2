package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"studyflow/internal/app"
	"studyflow/internal/apperr"
	"studyflow/internal/config"
	"studyflow/internal/generation"
	"studyflow/internal/httpapi"
	"studyflow/internal/logging"
	"studyflow/internal/model"
	"studyflow/internal/pipeline"
)

// builder creates the pipeline the subcommands run against, plus its closer.
type builder func(ctx context.Context, logger *slog.Logger) (httpapi.PipelineService, func() error, error)

type logFlags struct {
	level  string
	format string
	file   string
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return newCommandWith(stdout, stderr, buildFromEnv)
}

func buildFromEnv(ctx context.Context, logger *slog.Logger) (httpapi.PipelineService, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "load config")
	}
	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return services.Pipeline, services.Close, nil
}

// session builds the pipeline on first use so help output never needs
// credentials or external clients.
type session struct {
	build  builder
	logger *slog.Logger
	svc    httpapi.PipelineService
	closer func() error
}

func (s *session) pipeline(ctx context.Context) (httpapi.PipelineService, error) {
	if s.svc != nil {
		return s.svc, nil
	}
	svc, closer, err := s.build(ctx, s.logger)
	if err != nil {
		return nil, err
	}
	s.svc, s.closer = svc, closer
	return svc, nil
}

func (s *session) close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer()
	s.closer = nil
	return err
}

func newCommandWith(stdout, stderr io.Writer, build builder) *cli.Command {
	var (
		lf    logFlags
		flush func()
		sess  = &session{build: build}
	)

	return &cli.Command{
		Name:      "studyflow",
		Usage:     "Turn documents, images, videos and recordings into study material",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Value:       "warn",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Destination: &lf.level,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "json or console",
				Value:       "console",
				Destination: &lf.format,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "also write JSON logs to this rotating file",
				Sources:     cli.EnvVars("LOG_FILE"),
				Destination: &lf.file,
			},
		},
		// Logs go to stderr so stdout stays machine readable.
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			sess.logger, flush = logging.New(logging.Options{
				Level:  lf.level,
				Format: lf.format,
				File:   lf.file,
				Output: stderr,
			})
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			err := sess.close()
			if flush != nil {
				flush()
			}
			return err
		},
		Commands: []*cli.Command{
			cmdDocument(stdout, sess),
			cmdImage(stdout, sess),
			cmdVideo(stdout, sess),
			cmdTranscript(stdout, sess),
			cmdAudio(stdout, sess),
			cmdQuiz(stdout, sess),
			cmdFlashcards(stdout, sess),
			cmdIntent(stdout, sess),
			cmdHealth(stdout, sess),
		},
	}
}

func cmdDocument(stdout io.Writer, sess *session) *cli.Command {
	return &cli.Command{
		Name:      "document",
		Usage:     "Generate study notes from a PDF, DOCX, PPTX or TXT file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			path, data, err := readArgFile(c)
			if err != nil {
				return err
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			note, err := svc.Document(ctx, pipeline.DocumentInput{Data: data, FileName: path})
			if err != nil {
				return err
			}
			return printJSON(stdout, model.NoteFromPipeline(note))
		},
	}
}

func cmdImage(stdout io.Writer, sess *session) *cli.Command {
	return &cli.Command{
		Name:      "image",
		Usage:     "Extract text from an image",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			path, data, err := readArgFile(c)
			if err != nil {
				return err
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Image(ctx, pipeline.ImageInput{Data: data, FileName: path})
			if err != nil {
				return err
			}
			return printJSON(stdout, model.ImageTextFromOCR(res))
		},
	}
}

func cmdVideo(stdout io.Writer, sess *session) *cli.Command {
	return &cli.Command{
		Name:      "video",
		Usage:     "Analyze a YouTube video",
		ArgsUsage: "<url>",
		Action: func(ctx context.Context, c *cli.Command) error {
			url := strings.TrimSpace(c.Args().First())
			if url == "" {
				return apperr.New(apperr.InvalidInput, "a video URL is required")
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			note, err := svc.Video(ctx, pipeline.VideoInput{URL: url})
			if err != nil {
				return err
			}
			return printJSON(stdout, model.NoteFromPipeline(note))
		},
	}
}

func cmdTranscript(stdout io.Writer, sess *session) *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Transcribe a YouTube video without generating notes",
		ArgsUsage: "<url>",
		Action: func(ctx context.Context, c *cli.Command) error {
			url := strings.TrimSpace(c.Args().First())
			if url == "" {
				return apperr.New(apperr.InvalidInput, "a video URL is required")
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := svc.VideoTranscript(ctx, pipeline.VideoInput{URL: url})
			if err != nil {
				return err
			}
			return printJSON(stdout, model.TranscriptFromPipeline(res))
		},
	}
}

func cmdAudio(stdout io.Writer, sess *session) *cli.Command {
	var duration float64
	return &cli.Command{
		Name:      "audio",
		Usage:     "Analyze an audio recording",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:        "duration",
				Usage:       "recording length in seconds when the file header is not enough",
				Destination: &duration,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path, data, err := readArgFile(c)
			if err != nil {
				return err
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			note, err := svc.Audio(ctx, pipeline.AudioInput{Data: data, FileName: path, DurationSeconds: duration})
			if err != nil {
				return err
			}
			return printJSON(stdout, model.NoteFromPipeline(note))
		},
	}
}

func cmdQuiz(stdout io.Writer, sess *session) *cli.Command {
	var in pipeline.QuizInput
	return &cli.Command{
		Name:      "quiz",
		Usage:     "Generate a quiz from a note file, or from --topic",
		ArgsUsage: "[note-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "topic", Usage: "quiz on a topic instead of a note", Destination: &in.Topic},
			&cli.StringFlag{Name: "title", Destination: &in.Title},
			&cli.StringFlag{Name: "category", Destination: &in.Category},
			&cli.StringFlag{Name: "difficulty", Usage: "easy, medium or hard", Destination: &in.Difficulty},
			&cli.IntFlag{Name: "count", Usage: "number of questions", Destination: &in.QuestionCount},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 || in.Topic == "" {
				_, data, err := readArgFile(c)
				if err != nil {
					return err
				}
				in.Content = string(data)
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Quiz(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(stdout, model.QuizFromPipeline(res))
		},
	}
}

func cmdFlashcards(stdout io.Writer, sess *session) *cli.Command {
	var in pipeline.FlashcardsInput
	return &cli.Command{
		Name:      "flashcards",
		Usage:     "Generate flashcards from a note file",
		ArgsUsage: "<note-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Destination: &in.Title},
			&cli.StringFlag{Name: "category", Destination: &in.Category},
			&cli.IntFlag{Name: "count", Usage: "number of cards", Destination: &in.CardCount},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, data, err := readArgFile(c)
			if err != nil {
				return err
			}
			in.Content = string(data)
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Flashcards(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(stdout, model.FlashcardsFromPipeline(res))
		},
	}
}

func cmdIntent(stdout io.Writer, sess *session) *cli.Command {
	var in pipeline.IntentInput
	return &cli.Command{
		Name:      "intent",
		Usage:     "Detect the study action a message asks for",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "user name for the prompt", Destination: &in.UserName},
			&cli.IntFlag{Name: "level", Destination: &in.Level},
			&cli.StringFlag{Name: "style", Usage: "preferred response style", Destination: &in.ResponseStyle},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			in.Message = strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if in.Message == "" {
				return apperr.New(apperr.InvalidInput, "a message is required")
			}
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Intent(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(stdout, model.IntentFromPipeline(res))
		},
	}
}

func cmdHealth(stdout io.Writer, sess *session) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the generation service and the OCR engine",
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := sess.pipeline(ctx)
			if err != nil {
				return err
			}
			report := svc.Health(ctx)
			if err := printJSON(stdout, model.ReadyResponse{
				OK:         report.Status != generation.Unhealthy,
				Generation: report,
				OCR:        svc.OCRHealth(ctx),
			}); err != nil {
				return err
			}
			if report.Status == generation.Unhealthy {
				return apperr.New(apperr.ProviderUnavailable, report.Message)
			}
			return nil
		},
	}
}

func readArgFile(c *cli.Command) (string, []byte, error) {
	path := strings.TrimSpace(c.Args().First())
	if path == "" {
		return "", nil, apperr.New(apperr.InvalidInput, "a file argument is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		kind := apperr.Internal
		if errors.Is(err, os.ErrNotExist) {
			kind = apperr.InvalidInput
		}
		return "", nil, apperr.Wrap(goerr.Wrap(err, "read input", goerr.V("path", path)), kind, "cannot read "+path)
	}
	return path, data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
