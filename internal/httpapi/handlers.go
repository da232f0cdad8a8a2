package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"studyflow/internal/extract"
	"studyflow/internal/model"
	"studyflow/internal/pipeline"
)

var errMissingFile = errors.New("multipart field 'file' is required")

type upload struct {
	data     []byte
	fileName string
	form     *multipart.Form
}

func (u upload) cleanup() {
	if u.form != nil {
		_ = u.form.RemoveAll()
	}
}

func (s *server) handleDocument(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer up.cleanup()

	if err := extract.Validate(up.data, up.fileName, s.cfg.MaxUploadBytes); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	note, err := s.pipeline.Document(r.Context(), pipeline.DocumentInput{Data: up.data, FileName: up.fileName, UserID: userID(r)})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NoteFromPipeline(note))
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer up.cleanup()

	res, err := s.pipeline.Image(r.Context(), pipeline.ImageInput{Data: up.data, FileName: up.fileName, UserID: userID(r)})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ImageTextFromOCR(res))
}

func (s *server) handleAudio(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer up.cleanup()

	var duration float64
	if raw := strings.TrimSpace(r.FormValue("duration_seconds")); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d < 0 {
			s.writeError(w, r, http.StatusBadRequest, "invalid_input", "duration_seconds must be a non-negative number", nil)
			return
		}
		duration = d
	}

	note, err := s.pipeline.Audio(r.Context(), pipeline.AudioInput{
		Data:            up.data,
		FileName:        up.fileName,
		DurationSeconds: duration,
		UserID:          userID(r),
	})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NoteFromPipeline(note))
}

func (s *server) handleVideo(w http.ResponseWriter, r *http.Request) {
	var req model.VideoRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	note, err := s.pipeline.Video(r.Context(), pipeline.VideoInput{URL: req.URL, UserID: userID(r)})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NoteFromPipeline(note))
}

func (s *server) handleVideoTranscript(w http.ResponseWriter, r *http.Request) {
	var req model.VideoRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.pipeline.VideoTranscript(r.Context(), pipeline.VideoInput{URL: req.URL, UserID: userID(r)})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.TranscriptFromPipeline(res))
}

func (s *server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req model.QuizRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.pipeline.Quiz(r.Context(), req.Input(userID(r)))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.QuizFromPipeline(res))
}

func (s *server) handleFlashcards(w http.ResponseWriter, r *http.Request) {
	var req model.FlashcardsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.pipeline.Flashcards(r.Context(), req.Input(userID(r)))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.FlashcardsFromPipeline(res))
}

func (s *server) handleAssist(w http.ResponseWriter, r *http.Request) {
	var req model.AssistRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.pipeline.Assist(r.Context(), req.Input(userID(r)))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.AssistFromPipeline(res))
}

func (s *server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req model.IntentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.pipeline.Intent(r.Context(), req.Input(userID(r)))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.IntentFromPipeline(res))
}

func (s *server) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(min(s.cfg.MaxUploadBytes, 8<<20)); err != nil {
		s.handleMultipartReadError(w, r, err)
		return upload{}, false
	}
	up := upload{form: r.MultipartForm}

	file, header, err := r.FormFile("file")
	if err != nil {
		up.cleanup()
		s.handleMultipartReadError(w, r, errMissingFile)
		return upload{}, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		up.cleanup()
		s.handleMultipartReadError(w, r, err)
		return upload{}, false
	}
	up.data = data
	up.fileName = header.Filename
	return up, true
}

func (s *server) handleMultipartReadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isMaxBytes(err):
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", fmt.Sprintf("request exceeds %d bytes", s.cfg.MaxUploadBytes), nil)
	case errors.Is(err, errMissingFile):
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	default:
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid multipart form data", nil)
	}
}

func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		err = ensureBodyFullyConsumed(decoder)
	}
	if err == nil {
		return true
	}
	if isMaxBytes(err) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "JSON body too large", nil)
		return false
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON body", nil)
	return false
}
