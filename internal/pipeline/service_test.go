package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow/internal/apperr"
	"studyflow/internal/extract"
	"studyflow/internal/generation"
	"studyflow/internal/logging"
	"studyflow/internal/media"
	"studyflow/internal/ocr"
	"studyflow/internal/transcription"
)

type fakeGenerator struct {
	mu       sync.Mutex
	outcomes map[generation.TaskKind]generation.Outcome
	block    bool
	requests []generation.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) generation.Outcome {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return generation.Outcome{Status: generation.StatusFailure, Kind: apperr.Timeout, Message: "generation timed out"}
	}
	if out, ok := f.outcomes[req.Task]; ok {
		return out
	}
	return generation.Outcome{Status: generation.StatusSuccess, Text: "generated " + string(req.Task)}
}

func (f *fakeGenerator) Health(context.Context) generation.HealthReport {
	return generation.HealthReport{Status: generation.Healthy}
}

func (f *fakeGenerator) tasks() []generation.TaskKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]generation.TaskKind, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Task
	}
	return out
}

func success(text string) generation.Outcome {
	return generation.Outcome{Status: generation.StatusSuccess, Text: text}
}

func failed(kind apperr.Kind) generation.Outcome {
	return generation.Outcome{Status: generation.StatusFailure, Kind: kind, Message: "provider failed"}
}

func quota(text string) generation.Outcome {
	return generation.Outcome{Status: generation.StatusQuotaFallback, Text: text, Kind: apperr.QuotaExceeded}
}

type fakeImages struct {
	res ocr.Result
	err error
}

func (f fakeImages) Extract(context.Context, []byte, string) (ocr.Result, error) {
	return f.res, f.err
}

func (f fakeImages) Health(context.Context) ocr.Health {
	if f.err != nil {
		return ocr.Health{Status: ocr.Unhealthy, Engine: "fake", Message: f.err.Error()}
	}
	return ocr.Health{Status: ocr.Healthy, Engine: "fake", Message: "OCR engine is working"}
}

type fakeBackend struct {
	mu          sync.Mutex
	info        media.Info
	probeErr    error
	downloadErr error
	probes      int
	downloads   int
}

func (f *fakeBackend) Probe(context.Context, string) (media.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.info, f.probeErr
}

func (f *fakeBackend) Download(_ context.Context, _ string, dir string) (string, error) {
	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	p := filepath.Join(dir, "audio.webm")
	return p, os.WriteFile(p, []byte("webm"), 0o600)
}

type fakeSpeech struct {
	text string
	err  error
}

func (f fakeSpeech) Name() string { return "fake-speech" }

func (f fakeSpeech) Transcribe(context.Context, []byte, string) (transcription.Result, error) {
	return transcription.Result{Text: f.text, Confidence: 0.9}, f.err
}

func wavHeader(seconds int) []byte {
	const byteRate = 32000
	buf := make([]byte, 44)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+seconds*byteRate))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], 16000)
	binary.LittleEndian.PutUint32(buf[28:], byteRate)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(seconds*byteRate))
	return buf
}

type harness struct {
	svc     *Service
	gen     *fakeGenerator
	backend *fakeBackend
	tmp     string
	flows   []string
}

func newHarness(t *testing.T, speech transcription.Provider, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		gen:     &fakeGenerator{outcomes: map[generation.TaskKind]generation.Outcome{}},
		backend: &fakeBackend{info: media.Info{Title: "Cell Division", DurationSeconds: 420, Description: "Mitosis lecture"}},
		tmp:     t.TempDir(),
	}
	logger := logging.Discard()
	acq := media.NewAcquirer(h.backend, logger,
		media.WithTempDir(h.tmp),
		media.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	trOpts := []transcription.Option{transcription.WithSynthesizer(transcription.NewSynthesizer(rand.New(rand.NewPCG(7, 9))))}
	if speech == nil {
		trOpts = append(trOpts, transcription.WithMock(true))
	}
	tr := transcription.New(speech, logger, trOpts...)

	opts = append([]Option{WithFlowObserver(func(flow, status string, _ time.Duration) {
		h.flows = append(h.flows, flow+"/"+status)
	})}, opts...)
	h.svc = New(Dependencies{
		Extractor:   extract.New(logger),
		Images:      fakeImages{res: ocr.Result{Empty: true, Message: ocr.EmptyMessage}},
		Media:       acq,
		Transcriber: tr,
		Generator:   h.gen,
	}, logger, opts...)
	return h
}

func (h *harness) tempEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(h.tmp)
	require.NoError(t, err)
	return entries
}

func TestDocumentFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskDocumentAnalysis] = success("# Photosynthesis\n- light reactions")
	h.gen.outcomes[generation.TaskTitle] = success(`Title: "Photosynthesis Basics"`)

	note, err := h.svc.Document(context.Background(), DocumentInput{
		Data:     []byte("Photosynthesis converts light   energy.\r\n\r\n\r\n\r\nChlorophyll absorbs light."),
		FileName: "bio.txt",
		UserID:   "u-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Photosynthesis Basics", note.Title)
	assert.Equal(t, "# Photosynthesis\n- light reactions", note.Content)
	assert.Equal(t, SourceDocument, note.Source)
	assert.Equal(t, "text:bio.txt", note.SourceLabel)
	require.NotNil(t, note.Document)
	assert.Equal(t, 7, note.Document.WordCount)
	assert.False(t, note.Approximate)
	assert.Equal(t, []generation.TaskKind{generation.TaskDocumentAnalysis, generation.TaskTitle}, h.gen.tasks())
	assert.Contains(t, h.gen.requests[0].Prompt, "Photosynthesis converts light energy.\n\nChlorophyll absorbs light.")
	assert.Equal(t, []string{"document/ok"}, h.flows)
}

func TestDocumentTitleFallsBackToFileName(t *testing.T) {
	for name, out := range map[string]generation.Outcome{
		"failure": failed(apperr.ProviderUnavailable),
		"quota":   quota("canned"),
		"blank":   success(`""`),
	} {
		h := newHarness(t, nil)
		h.gen.outcomes[generation.TaskTitle] = out

		note, err := h.svc.Document(context.Background(), DocumentInput{Data: []byte("Cells divide."), FileName: "notes/Biology 101.txt"})
		require.NoError(t, err, name)
		assert.Equal(t, "Study Notes - Biology 101", note.Title, name)
	}
}

func TestDocumentGenerationFailureReportsStage(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskDocumentAnalysis] = failed(apperr.ProviderUnavailable)

	_, err := h.svc.Document(context.Background(), DocumentInput{Data: []byte("Cells divide."), FileName: "a.txt"})
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))
	assert.Equal(t, apperr.StageGenerate, apperr.StageOf(err))
	assert.Equal(t, []string{"document/failed"}, h.flows)
}

func TestDocumentQuotaFallbackIsUsable(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskDocumentAnalysis] = quota("AI is busy, here is a placeholder.")

	note, err := h.svc.Document(context.Background(), DocumentInput{Data: []byte("Cells divide."), FileName: "a.txt"})
	require.NoError(t, err)
	assert.True(t, note.QuotaFallback)
	assert.Equal(t, "AI is busy, here is a placeholder.", note.Content)
}

func TestDocumentExtractionErrorsReportStage(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Document(context.Background(), DocumentInput{Data: []byte("x"), FileName: "virus.exe"})
	assert.True(t, apperr.Is(err, apperr.UnsupportedType))
	assert.Equal(t, apperr.StageExtract, apperr.StageOf(err))

	_, err = h.svc.Document(context.Background(), DocumentInput{Data: []byte("   "), FileName: "empty.txt"})
	assert.True(t, apperr.Is(err, apperr.NoTextFound))
	assert.Empty(t, h.gen.tasks())
}

func TestImageFlowEmptyIsSuccess(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.Image(context.Background(), ImageInput{Data: []byte("png"), FileName: "board.png"})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, ocr.EmptyMessage, res.Message)
	assert.Empty(t, h.gen.tasks())
}

func TestImageFlowErrorReportsStage(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.images = fakeImages{err: apperr.New(apperr.ProviderUnavailable, "OCR engine is not installed")}

	_, err := h.svc.Image(context.Background(), ImageInput{Data: []byte("png"), FileName: "board.png"})
	assert.Equal(t, apperr.StageOCR, apperr.StageOf(err))
}

func TestVideoFlowWithRealTranscript(t *testing.T) {
	h := newHarness(t, fakeSpeech{text: "Today we cover mitosis."})
	h.gen.outcomes[generation.TaskVideoAnalysis] = success("## Summary\nMitosis.")

	note, err := h.svc.Video(context.Background(), VideoInput{URL: "https://youtu.be/abc123?si=share", UserID: "u-2"})
	require.NoError(t, err)

	assert.Equal(t, "Cell Division - Video Analysis", note.Title)
	assert.Equal(t, "## Summary\nMitosis.", note.Content)
	assert.False(t, note.Approximate)
	assert.Empty(t, note.Disclosure)
	require.NotNil(t, note.Transcript)
	assert.Equal(t, "fake-speech", note.Transcript.Provider)
	assert.Equal(t, "video:https://www.youtube.com/watch?v=abc123", note.SourceLabel)
	assert.Contains(t, h.gen.requests[0].Prompt, "Today we cover mitosis.")
	assert.Contains(t, h.gen.requests[0].Prompt, "Title: Cell Division")
	assert.Empty(t, h.tempEntries(t))
}

func TestVideoFlowBotDetectionContinuesFromMetadata(t *testing.T) {
	h := newHarness(t, fakeSpeech{text: "never used"})
	h.backend.downloadErr = apperr.New(apperr.BotDetected, "Sign in to confirm you're not a bot")

	note, err := h.svc.Video(context.Background(), VideoInput{URL: "https://www.youtube.com/watch?v=bot"})
	require.NoError(t, err)

	assert.True(t, note.Approximate)
	assert.Equal(t, transcription.MockNotice, note.Disclosure)
	assert.True(t, strings.HasSuffix(note.Content, "_"+transcription.MockNotice+"_"))
	require.NotNil(t, note.Transcript)
	assert.True(t, note.Transcript.IsMock)
	assert.Contains(t, note.Transcript.FallbackReason, "audio unavailable")
	assert.InDelta(t, 420, note.Transcript.DurationSeconds, 0.001)
	assert.Equal(t, 1, h.backend.downloads)
	assert.Empty(t, h.tempEntries(t))
}

func TestVideoFlowCleansUpWhenGenerationFails(t *testing.T) {
	h := newHarness(t, fakeSpeech{text: "transcript"})
	h.gen.outcomes[generation.TaskVideoAnalysis] = failed(apperr.RateLimited)

	_, err := h.svc.Video(context.Background(), VideoInput{URL: "https://www.youtube.com/watch?v=gen"})
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.RateLimited))
	assert.Equal(t, apperr.StageGenerate, apperr.StageOf(err))
	assert.Equal(t, 1, h.backend.downloads)
	assert.Empty(t, h.tempEntries(t))
}

func TestVideoFlowRejectsMalformedURLBeforeNetwork(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Video(context.Background(), VideoInput{URL: "not-a-url"})
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.InvalidURL))
	assert.Equal(t, apperr.StageValidate, apperr.StageOf(err))
	assert.Zero(t, h.backend.probes)
	assert.Zero(t, h.backend.downloads)
}

func TestVideoFlowTooLongNeverDownloads(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.info.DurationSeconds = 3 * 3600

	_, err := h.svc.Video(context.Background(), VideoInput{URL: "https://www.youtube.com/watch?v=long"})
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.TooLong))
	assert.Equal(t, apperr.StageAcquire, apperr.StageOf(err))
	assert.Zero(t, h.backend.downloads)
	assert.Empty(t, h.gen.tasks())
}

func TestAudioFlowTenMinutesInMockMode(t *testing.T) {
	h := newHarness(t, nil)

	note, err := h.svc.Audio(context.Background(), AudioInput{Data: wavHeader(600), FileName: "lecture-3.wav"})
	require.NoError(t, err)

	assert.Equal(t, "lecture-3 - Audio Analysis", note.Title)
	assert.True(t, note.Approximate)
	tr := note.Transcript
	require.NotNil(t, tr)
	assert.True(t, tr.IsMock)
	assert.GreaterOrEqual(t, tr.Confidence, 0.85)
	assert.LessOrEqual(t, tr.Confidence, 0.95)
	assert.InDelta(t, 1500, tr.WordCount, 200)
	assert.Len(t, tr.Chapters, 2)
}

func TestAudioFlowChapterBoundary(t *testing.T) {
	h := newHarness(t, nil)

	short, err := h.svc.Audio(context.Background(), AudioInput{Data: wavHeader(1), FileName: "a.wav", DurationSeconds: 299})
	require.NoError(t, err)
	assert.Empty(t, short.Transcript.Chapters)

	long, err := h.svc.Audio(context.Background(), AudioInput{Data: wavHeader(1), FileName: "a.wav", DurationSeconds: 301})
	require.NoError(t, err)
	assert.Len(t, long.Transcript.Chapters, 1)
}

func TestAudioFlowProviderFailureStillProducesNote(t *testing.T) {
	h := newHarness(t, fakeSpeech{err: errors.New("provider down")})

	note, err := h.svc.Audio(context.Background(), AudioInput{Data: wavHeader(60), FileName: "talk.wav"})
	require.NoError(t, err)
	assert.True(t, note.Approximate)
	assert.Contains(t, note.Transcript.FallbackReason, "provider down")
}

func TestAudioFlowRejectsNonAudio(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Audio(context.Background(), AudioInput{Data: []byte("%PDF-1.4"), FileName: "a.pdf"})
	assert.True(t, apperr.Is(err, apperr.UnsupportedType))
	assert.Equal(t, apperr.StageValidate, apperr.StageOf(err))
}

func TestFlowTimeoutIsTerminal(t *testing.T) {
	h := newHarness(t, nil, WithFlowTimeout(20*time.Millisecond))
	h.gen.block = true

	_, err := h.svc.Document(context.Background(), DocumentInput{Data: []byte("Cells divide."), FileName: "a.txt"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Timeout))
	assert.Equal(t, apperr.StageGenerate, apperr.StageOf(err))
}

const fencedQuiz = "```json\n" + `{
  "title": "Cells",
  "questions": [
    {"question": "Powerhouse of the cell?", "options": ["Nucleus", "Mitochondria"], "correctAnswer": 1, "explanation": "ATP"},
    {"options": ["a", "b"], "correctAnswer": 0},
    {"question": "Site of protein synthesis?", "options": ["Ribosome", "Golgi"], "correctAnswer": "A"}
  ]
}` + "\n```"

func TestQuizFromNote(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskQuiz] = success(fencedQuiz)

	res, err := h.svc.Quiz(context.Background(), QuizInput{Content: "Mitochondria make ATP."})
	require.NoError(t, err)

	assert.Len(t, res.Quiz.Questions, 2)
	assert.Equal(t, 1, res.Report.Dropped)
	assert.False(t, res.Report.Fallback)
	assert.Equal(t, "Cells", res.Quiz.Title)
	assert.Equal(t, "AI-generated quiz from note content", res.Quiz.Description)
	prompt := h.gen.requests[0].Prompt
	assert.Contains(t, prompt, "Number of questions: 5")
	assert.Contains(t, prompt, "Difficulty: medium")
	assert.Contains(t, prompt, "Title: Generated Quiz")
}

func TestQuizQuotaFallbackYieldsPlaceholder(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskQuiz] = quota("The AI service is busy.")

	res, err := h.svc.Quiz(context.Background(), QuizInput{Content: "note", Title: "Week 3"})
	require.NoError(t, err)

	assert.True(t, res.QuotaFallback)
	assert.True(t, res.Report.Fallback)
	require.Len(t, res.Quiz.Questions, 1)
	assert.Equal(t, "Week 3", res.Quiz.Title)
}

func TestTopicQuizValidation(t *testing.T) {
	h := newHarness(t, nil)
	cases := []QuizInput{
		{},
		{Topic: "Algebra", QuestionCount: 21},
		{Topic: "Algebra", QuestionCount: -1},
		{Topic: "Algebra", Difficulty: "extreme"},
	}
	for _, in := range cases {
		_, err := h.svc.Quiz(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.InvalidInput), "%+v", in)
		assert.Equal(t, apperr.StageValidate, apperr.StageOf(err))
	}
	assert.Empty(t, h.gen.tasks())

	_, err := h.svc.Quiz(context.Background(), QuizInput{Topic: "Algebra", Difficulty: "Hard", QuestionCount: 20})
	require.NoError(t, err)
	assert.Contains(t, h.gen.requests[0].Prompt, "Topic: Algebra")
	assert.Contains(t, h.gen.requests[0].Prompt, "Difficulty: hard")
}

func TestFlashcardsFromNote(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskFlashcards] = success(`{"cards":[{"front":"ATP","back":"Energy currency","tags":"bio, Bio"},{"front":"","back":"x"}]}`)

	res, err := h.svc.Flashcards(context.Background(), FlashcardsInput{Content: "ATP stores energy.", Category: "Biology"})
	require.NoError(t, err)

	require.Len(t, res.Flashcards.Cards, 1)
	assert.Equal(t, "Generated Flashcards", res.Flashcards.Title)
	assert.Equal(t, 1, res.Report.Dropped)
	assert.Contains(t, h.gen.requests[0].Prompt, "Number of cards: 10")
	assert.Contains(t, h.gen.requests[0].Prompt, "Category: Biology")

	_, err = h.svc.Flashcards(context.Background(), FlashcardsInput{})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestAssist(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskSummarize] = quota("Summaries are unavailable right now.")

	res, err := h.svc.Assist(context.Background(), AssistInput{Task: generation.TaskSummarize, Content: "long note"})
	require.NoError(t, err)
	assert.True(t, res.QuotaFallback)
	assert.Equal(t, "Summaries are unavailable right now.", res.Text)

	res, err = h.svc.Assist(context.Background(), AssistInput{Task: generation.TaskStudyPlan, Subject: "Chemistry"})
	require.NoError(t, err)
	assert.Equal(t, "generated study_plan", res.Text)

	invalid := []AssistInput{
		{Task: generation.TaskChat},
		{Task: generation.TaskExplain, Content: "  "},
		{Task: generation.TaskStudyPlan},
		{Task: generation.TaskAssess, Responses: "A, B"},
		{Task: generation.TaskVideoAnalysis, Content: "x"},
		{Task: "dance", Content: "x"},
	}
	for _, in := range invalid {
		_, err := h.svc.Assist(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.InvalidInput), "%+v", in)
	}
	assert.Len(t, h.gen.tasks(), 2)
}

func TestAssistVideoAnalysis(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.Assist(context.Background(), AssistInput{Task: generation.TaskVideoAnalysis, VideoTitle: "Krebs cycle"})
	require.NoError(t, err)
	assert.Equal(t, "generated video_analysis", res.Text)
	assert.Contains(t, h.gen.requests[0].Prompt, "Video Title: Krebs cycle")
	assert.Contains(t, h.gen.requests[0].Prompt, "Transcript: No transcript provided")

	_, err = h.svc.Assist(context.Background(), AssistInput{Task: generation.TaskVideoAnalysis, VideoTitle: " ", Transcript: "\t"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Len(t, h.gen.tasks(), 1)
}

func TestIntent(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskIntent] = success(`{"action": "create_flashcards", "confidence": "medium", "parameters": {"topic": "enzymes"}, "response": "Making cards."}`)

	res, err := h.svc.Intent(context.Background(), IntentInput{Message: "flashcards on enzymes please", UserName: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "create_flashcards", res.Intent.Action)
	assert.Equal(t, "medium", res.Intent.Confidence)
	assert.Equal(t, "enzymes", res.Intent.Parameters["topic"])
	assert.False(t, res.Report.Fallback)
	assert.False(t, res.QuotaFallback)
	assert.Contains(t, h.gen.requests[0].Prompt, "User: Sam (level 1, prefers detailed answers)")
	assert.Equal(t, []string{"intent/ok"}, h.flows)
}

func TestIntentProseBecomesChat(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskIntent] = success("Mitochondria make ATP.")

	res, err := h.svc.Intent(context.Background(), IntentInput{Message: "what do mitochondria do?"})
	require.NoError(t, err)
	assert.Equal(t, "chat", res.Intent.Action)
	assert.Equal(t, "low", res.Intent.Confidence)
	assert.Equal(t, "Mitochondria make ATP.", res.Intent.Response)
	assert.True(t, res.Report.Fallback)
}

func TestIntentQuotaAnswersAsChat(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.outcomes[generation.TaskIntent] = quota("Try again tomorrow.")

	res, err := h.svc.Intent(context.Background(), IntentInput{Message: "quiz me"})
	require.NoError(t, err)
	assert.True(t, res.QuotaFallback)
	assert.Equal(t, "chat", res.Intent.Action)
	assert.Equal(t, ConfidenceFallback, res.Intent.Confidence)
	assert.Equal(t, "Try again tomorrow.", res.Intent.Response)
}

func TestIntentValidationAndFailure(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Intent(context.Background(), IntentInput{Message: "  "})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Empty(t, h.gen.tasks())

	h.gen.outcomes[generation.TaskIntent] = failed(apperr.ProviderUnavailable)
	_, err = h.svc.Intent(context.Background(), IntentInput{Message: "hello"})
	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))
	assert.Equal(t, apperr.StageGenerate, apperr.StageOf(err))
}

func TestVideoTranscriptSkipsGeneration(t *testing.T) {
	h := newHarness(t, fakeSpeech{text: "Today we cover mitosis."})

	res, err := h.svc.VideoTranscript(context.Background(), VideoInput{URL: "https://youtu.be/abc123"})
	require.NoError(t, err)

	assert.Equal(t, "video:https://www.youtube.com/watch?v=abc123", res.SourceLabel)
	assert.Equal(t, "Cell Division", res.Video.Title)
	assert.Equal(t, "Today we cover mitosis.", res.Transcript.Text)
	assert.False(t, res.Transcript.IsMock)
	assert.Empty(t, h.gen.tasks())
	assert.Empty(t, h.tempEntries(t))
	assert.Equal(t, []string{"video_transcript/ok"}, h.flows)
}

func TestVideoTranscriptBotDetectionIsSynthetic(t *testing.T) {
	h := newHarness(t, fakeSpeech{text: "never used"})
	h.backend.downloadErr = apperr.New(apperr.BotDetected, "Sign in to confirm you're not a bot")

	res, err := h.svc.VideoTranscript(context.Background(), VideoInput{URL: "https://www.youtube.com/watch?v=bot"})
	require.NoError(t, err)
	assert.True(t, res.Transcript.IsMock)
	assert.Contains(t, res.Transcript.FallbackReason, "audio unavailable")
	assert.Empty(t, h.tempEntries(t))

	_, err = h.svc.VideoTranscript(context.Background(), VideoInput{URL: "ftp://example.com/a"})
	assert.Equal(t, apperr.StageValidate, apperr.StageOf(err))
}

func TestOCRHealth(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, ocr.Healthy, h.svc.OCRHealth(context.Background()).Status)

	h.svc.images = fakeImages{err: errors.New("tesseract missing")}
	got := h.svc.OCRHealth(context.Background())
	assert.Equal(t, ocr.Unhealthy, got.Status)
	assert.Equal(t, "tesseract missing", got.Message)
}
