// Package extract turns uploaded document buffers into cleaned plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"studyflow/internal/apperr"
	"studyflow/internal/textutil"
)

type FileType string

const (
	TypePDF  FileType = "pdf"
	TypeDOCX FileType = "docx"
	TypePPTX FileType = "pptx"
	TypeText FileType = "text"
)

const DefaultPPTXTimeout = 30 * time.Minute

var supportedExtensions = map[string]FileType{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".doc":  TypeDOCX,
	".pptx": TypePPTX,
	".ppt":  TypePPTX,
	".txt":  TypeText,
}

// Result is the cleaned text of one document. Text is never empty.
type Result struct {
	Text        string
	SourceLabel string
	FileName    string
	FileType    FileType
	Size        int
	CharCount   int
	WordCount   int
	// Placeholder is set when the text is a synthetic notice rather than document content.
	Placeholder bool
}

type ObserverFunc func(fileType, result string)

type Option func(*Service)

type Service struct {
	logger      *slog.Logger
	pptxTimeout time.Duration
	observer    ObserverFunc
}

func WithPPTXTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pptxTimeout = d
		}
	}
}

func WithObserver(observer ObserverFunc) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

func New(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:      logger,
		pptxTimeout: DefaultPPTXTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func DetectType(fileName string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	fileType, ok := supportedExtensions[ext]
	if !ok {
		msg := fmt.Sprintf("unsupported file type %q; supported: %s", ext, strings.Join(SupportedExtensions(), ", "))
		return "", apperr.New(apperr.UnsupportedType, msg)
	}
	return fileType, nil
}

func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Validate checks an upload before any parsing happens.
func Validate(data []byte, fileName string, maxBytes int64) error {
	if strings.TrimSpace(fileName) == "" {
		return apperr.New(apperr.InvalidInput, "file name is required")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		msg := fmt.Sprintf("file size (%dMB) exceeds maximum allowed size (%dMB)", len(data)>>20, maxBytes>>20)
		return apperr.New(apperr.InvalidInput, msg)
	}
	_, err := DetectType(fileName)
	return err
}

func Suggestion(fileType FileType) string {
	switch fileType {
	case TypeDOCX:
		return "Ensure the DOCX file contains actual text and is not corrupted. Try saving the document as a new file or converting it to PDF."
	case TypePDF:
		return "Ensure the PDF contains selectable text and is not a scanned image. For a scanned PDF, run OCR first."
	case TypePPTX:
		return "Ensure the slides contain text and the file is not corrupted. Try saving it as a new file."
	case TypeText:
		return "Ensure the text file is not empty and is UTF-8 encoded."
	default:
		return "Check that the file is not corrupted and contains readable text."
	}
}

func (s *Service) Extract(ctx context.Context, data []byte, fileName string) (Result, error) {
	fileType, err := DetectType(fileName)
	if err != nil {
		s.observe("unknown", "unsupported")
		return Result{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.observe(string(fileType), "no_text")
		return Result{}, noText(fileType, fileName)
	}

	started := time.Now()
	var (
		raw         string
		placeholder bool
	)
	switch fileType {
	case TypePDF:
		raw, err = readPDF(ctx, data)
	case TypeDOCX:
		raw, err = readDOCX(data)
		if err == nil && strings.TrimSpace(raw) == "" {
			s.logger.Info("docx raw extraction empty, stripping markup", "file", fileName)
			raw, err = stripDOCXMarkup(data)
		}
	case TypePPTX:
		raw, placeholder, err = s.readPPTXBounded(ctx, data, fileName)
	case TypeText:
		raw = readText(data)
	}
	if err != nil {
		s.observe(string(fileType), "failed")
		if ctxErr := apperr.FromContext(err); ctxErr != nil {
			return Result{}, ctxErr
		}
		wrapped := goerr.Wrap(err, "extract text", goerr.V("file", fileName), goerr.V("type", fileType), goerr.V("size", len(data)))
		return Result{}, apperr.Wrap(wrapped, apperr.ExtractionFailed, fmt.Sprintf("could not read %s file: %v", fileType, err)).
			WithSuggestion(Suggestion(fileType))
	}

	text := textutil.Clean(raw)
	if text == "" {
		s.observe(string(fileType), "no_text")
		return Result{}, noText(fileType, fileName)
	}

	s.observe(string(fileType), "ok")
	s.logger.Debug("text extracted",
		"file", fileName,
		"type", fileType,
		"chars", len(text),
		"placeholder", placeholder,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return Result{
		Text:        text,
		SourceLabel: fmt.Sprintf("%s:%s", fileType, fileName),
		FileName:    fileName,
		FileType:    fileType,
		Size:        len(data),
		CharCount:   len([]rune(text)),
		WordCount:   textutil.WordCount(text),
		Placeholder: placeholder,
	}, nil
}

func (s *Service) observe(fileType, result string) {
	if s.observer != nil {
		s.observer(fileType, result)
	}
}

func noText(fileType FileType, fileName string) error {
	msg := fmt.Sprintf("no text content could be extracted from %q", fileName)
	return apperr.New(apperr.NoTextFound, msg).WithSuggestion(Suggestion(fileType))
}

var errNotOOXML = errors.New("not an Office Open XML container")
