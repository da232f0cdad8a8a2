package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow/internal/apperr"
	"studyflow/internal/logging"
	"studyflow/internal/sysexec"
)

type fakeBackend struct {
	mu        sync.Mutex
	probes    int
	downloads int
	probe     func(n int) (Info, error)
	download  func(n int, dir string) (string, error)
}

func (f *fakeBackend) Probe(_ context.Context, _ string) (Info, error) {
	f.mu.Lock()
	f.probes++
	n := f.probes
	f.mu.Unlock()
	return f.probe(n)
}

func (f *fakeBackend) Download(_ context.Context, _ string, dir string) (string, error) {
	f.mu.Lock()
	f.downloads++
	n := f.downloads
	f.mu.Unlock()
	return f.download(n, dir)
}

func writeAudio(dir string) (string, error) {
	p := filepath.Join(dir, "audio.webm")
	return p, os.WriteFile(p, []byte("webm-bytes"), 0o600)
}

func okBackend(duration float64) *fakeBackend {
	return &fakeBackend{
		probe: func(int) (Info, error) {
			return Info{Title: "Cell Division Explained", DurationSeconds: duration}, nil
		},
		download: func(_ int, dir string) (string, error) { return writeAudio(dir) },
	}
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestAcquirer(t *testing.T, b Backend, opts ...Option) (*Acquirer, string) {
	t.Helper()
	tmp := t.TempDir()
	opts = append([]Option{WithTempDir(tmp), WithSleeper((&recordedSleeps{}).sleep)}, opts...)
	return NewAcquirer(b, logging.Discard(), opts...), tmp
}

func TestCleanURL(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1&index=2": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?feature=share&v=abc_DEF-123":       "https://www.youtube.com/watch?v=abc_DEF-123",
		"https://youtu.be/dQw4w9WgXcQ?si=tracking":                    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ?start=10":          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abcdEFGhijk":                  "https://www.youtube.com/watch?v=abcdEFGhijk",
		"  https://www.youtube.com/channel/UC123  ":                   "https://www.youtube.com/channel/UC123",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanURL(in), in)
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://www.youtube.com/watch?v=x"))
	assert.NoError(t, ValidateURL("youtu.be/x"))
	assert.NoError(t, ValidateURL("https://m.youtube.com/watch?v=x"))
	for _, bad := range []string{"", "not-a-url", "https://vimeo.com/123", "https://youtube.com/"} {
		assert.True(t, apperr.Is(ValidateURL(bad), apperr.InvalidURL), bad)
	}
}

func TestAcquireRejectsMalformedURLWithoutBackendCalls(t *testing.T) {
	b := okBackend(60)
	var results []string
	a, _ := newTestAcquirer(t, b, WithObserver(func(r string) { results = append(results, r) }))

	_, err := a.Acquire(context.Background(), "not-a-url")
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.InvalidURL))
	assert.False(t, apperr.Is(err, apperr.BotDetected))
	assert.False(t, apperr.Is(err, apperr.TooLong))
	assert.Zero(t, b.probes)
	assert.Zero(t, b.downloads)
	assert.Equal(t, []string{"invalid_url"}, results)
}

func TestAcquireTooLongNeverDownloads(t *testing.T) {
	b := okBackend(7201)
	a, tmp := newTestAcquirer(t, b, WithMaxDuration(2*time.Hour))

	_, err := a.Acquire(context.Background(), "https://www.youtube.com/watch?v=long")
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.TooLong))
	assert.Equal(t, 1, b.probes)
	assert.Zero(t, b.downloads)
	entries, _ := os.ReadDir(tmp)
	assert.Empty(t, entries)
}

func TestAcquireDownloadsAndCloseRemovesTempDir(t *testing.T) {
	a, tmp := newTestAcquirer(t, okBackend(600))

	audio, err := a.Acquire(context.Background(), "https://youtu.be/abc123?si=x")
	require.NoError(t, err)

	assert.Equal(t, "Cell Division Explained", audio.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", audio.URL)
	data, err := audio.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(data))
	assert.True(t, strings.HasPrefix(audio.Path, tmp))

	require.NoError(t, audio.Close())
	require.NoError(t, audio.Close())
	entries, _ := os.ReadDir(tmp)
	assert.Empty(t, entries)
}

func TestAcquireRetriesNetworkErrorsWithJitter(t *testing.T) {
	b := okBackend(60)
	b.probe = func(n int) (Info, error) {
		if n < 3 {
			return Info{}, apperr.New(apperr.NetworkError, "connection reset")
		}
		return Info{Title: "ok"}, nil
	}
	sleeps := &recordedSleeps{}
	a, _ := newTestAcquirer(t, b, WithSleeper(sleeps.sleep), WithJitter(10*time.Millisecond, 20*time.Millisecond), WithMaxAttempts(3))

	audio, err := a.Acquire(context.Background(), "https://www.youtube.com/watch?v=net")
	require.NoError(t, err)
	defer audio.Close()

	assert.Equal(t, 3, b.probes)
	require.Len(t, sleeps.delays, 2)
	for _, d := range sleeps.delays {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestAcquireDoesNotRetryBotDetection(t *testing.T) {
	b := okBackend(60)
	b.download = func(int, string) (string, error) {
		return "", apperr.New(apperr.BotDetected, "blocked")
	}
	var results []string
	a, tmp := newTestAcquirer(t, b, WithObserver(func(r string) { results = append(results, r) }))

	_, err := a.Acquire(context.Background(), "https://www.youtube.com/watch?v=bot")
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.BotDetected))
	assert.Equal(t, 1, b.downloads)
	assert.Equal(t, []string{"bot_detected"}, results)
	entries, _ := os.ReadDir(tmp)
	assert.Empty(t, entries, "failed download must not leak the temp dir")
}

func TestAcquireBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	b := okBackend(60)
	b.probe = func(int) (Info, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return Info{Title: "x"}, nil
	}
	a, _ := newTestAcquirer(t, b, WithMaxConcurrent(1))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := a.Acquire(context.Background(), "https://www.youtube.com/watch?v=c")
			if assert.NoError(t, err) {
				_ = audio.Close()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
}

func TestMetadataFallsBackToPlaceholder(t *testing.T) {
	b := okBackend(60)
	b.probe = func(int) (Info, error) { return Info{}, errors.New("boom") }
	a, _ := newTestAcquirer(t, b)

	info := a.Metadata(context.Background(), "https://www.youtube.com/watch?v=x")
	assert.Equal(t, "YouTube Video", info.Title)
	assert.Zero(t, info.DurationSeconds)
	assert.Equal(t, "Unknown", info.Uploader)
	assert.Equal(t, "Video information could not be extracted", info.Description)
}

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error
	args   [][]string
	onRun  func(args []string)
}

func (f *fakeRunner) run(_ context.Context, _ string, args []string, _ []byte) ([]byte, []byte, error) {
	f.args = append(f.args, args)
	if f.onRun != nil {
		f.onRun(args)
	}
	return f.stdout, f.stderr, f.err
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestYTDLPProbe(t *testing.T) {
	r := &fakeRunner{stdout: []byte(`{"title":" Krebs Cycle ","duration":754.5,"uploader":"BioChan","description":"Lecture 4"}`)}
	y := NewYTDLP("yt-dlp", "socks5://proxy:1080", r.run)
	y.pick = func(int) int { return 2 }

	info, err := y.Probe(context.Background(), "https://www.youtube.com/watch?v=k")
	require.NoError(t, err)

	assert.Equal(t, Info{Title: "Krebs Cycle", DurationSeconds: 754.5, Uploader: "BioChan", Description: "Lecture 4"}, info)
	args := r.args[0]
	assert.Contains(t, args, "--dump-single-json")
	assert.Contains(t, args, "--skip-download")
	assert.Equal(t, "socks5://proxy:1080", argAfter(args, "--proxy"))
	assert.Equal(t, userAgents[2], argAfter(args, "--user-agent"))
	assert.Equal(t, "https://www.youtube.com/watch?v=k", args[len(args)-1])
}

func TestYTDLPProbeDefaultsTitle(t *testing.T) {
	r := &fakeRunner{stdout: []byte(`{"duration":10}`)}
	info, err := NewYTDLP("", "", r.run).Probe(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "Unknown Title", info.Title)
}

func TestYTDLPDownloadFindsOutputFile(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{onRun: func(args []string) {
		out := strings.Replace(argAfter(args, "-o"), "%(ext)s", "m4a", 1)
		require.NoError(t, os.WriteFile(out, []byte("m4a"), 0o600))
	}}

	path, err := NewYTDLP("yt-dlp", "", r.run).Download(context.Background(), "https://www.youtube.com/watch?v=d", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "audio.m4a"), path)
	assert.Equal(t, downloadFormat, argAfter(r.args[0], "-f"))
	assert.Equal(t, "US", argAfter(r.args[0], "--geo-bypass-country"))
}

func TestYTDLPDownloadWithoutOutputFails(t *testing.T) {
	_, err := NewYTDLP("yt-dlp", "", (&fakeRunner{}).run).Download(context.Background(), "u", t.TempDir())
	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))
}

func TestClassifyFailure(t *testing.T) {
	exitErr := errors.New("exit status 1")
	cases := []struct {
		stderr string
		want   apperr.Kind
	}{
		{"ERROR: [youtube] x: Sign in to confirm you're not a bot", apperr.BotDetected},
		{"ERROR: unable to download video data: HTTP Error 403: Forbidden", apperr.BotDetected},
		{"ERROR: HTTP Error 429: Too Many Requests", apperr.BotDetected},
		{"ERROR: Unable to download webpage: <urlopen error [Errno -3] Temporary failure in name resolution>", apperr.NetworkError},
		{"ERROR: Read timed out.", apperr.NetworkError},
		{"ERROR: [youtube] x: Video unavailable. This content is forbidden in your region", apperr.ProviderUnavailable},
		{"ERROR: Private video", apperr.ProviderUnavailable},
	}
	for _, tc := range cases {
		err := classifyFailure(exitErr, []byte(tc.stderr), "probe")
		assert.Equal(t, tc.want, apperr.KindOf(err), tc.stderr)
	}

	assert.True(t, apperr.Is(classifyFailure(context.DeadlineExceeded, nil, "probe"), apperr.Timeout))
	assert.True(t, apperr.Is(classifyFailure(sysexec.ErrBinaryNotFound, nil, "probe"), apperr.ProviderUnavailable))
}
