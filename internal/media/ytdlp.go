package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"studyflow/internal/apperr"
	"studyflow/internal/sysexec"
)

const downloadFormat = "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best[height<=480]"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var audioOutputExtensions = []string{".webm", ".m4a", ".mp3", ".opus"}

var botPhrases = []string{
	"sign in to confirm",
	"confirm you're not a bot",
	"confirm you’re not a bot",
	"http error 403",
	"http error 429",
}

var networkPhrases = []string{
	"timed out",
	"connection reset",
	"connection refused",
	"name or service not known",
	"temporary failure in name resolution",
	"no route to host",
	"network is unreachable",
	"unable to download webpage",
}

type YTDLP struct {
	path  string
	proxy string
	run   sysexec.Runner
	pick  func(n int) int
}

func NewYTDLP(path, proxy string, run sysexec.Runner) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if run == nil {
		run = sysexec.Run
	}
	return &YTDLP{path: path, proxy: strings.TrimSpace(proxy), run: run, pick: rand.IntN}
}

func (y *YTDLP) Name() string { return "yt-dlp" }

type probeOutput struct {
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	Description string  `json:"description"`
}

func (y *YTDLP) Probe(ctx context.Context, url string) (Info, error) {
	args := append(y.commonArgs(),
		"--dump-single-json",
		"--skip-download",
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Accept:text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"--add-header", "DNT:1",
		"--add-header", "Connection:keep-alive",
		url,
	)
	stdout, stderr, err := y.run(ctx, y.path, args, nil)
	if err != nil {
		return Info{}, classifyFailure(err, stderr, "probe")
	}

	var out probeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return Info{}, apperr.Wrap(goerr.Wrap(err, "decode yt-dlp metadata"), apperr.ProviderUnavailable, "video metadata could not be read")
	}
	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = "Unknown Title"
	}
	return Info{
		Title:           title,
		DurationSeconds: out.Duration,
		Uploader:        strings.TrimSpace(out.Uploader),
		Description:     strings.TrimSpace(out.Description),
	}, nil
}

// Download writes the audio stream into dir and returns the file path.
func (y *YTDLP) Download(ctx context.Context, url, dir string) (string, error) {
	args := append(y.commonArgs(),
		"-f", downloadFormat,
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		"--referer", "https://www.youtube.com/",
		"--add-header", "Origin:https://www.youtube.com",
		"--geo-bypass-country", "US",
		url,
	)
	_, stderr, err := y.run(ctx, y.path, args, nil)
	if err != nil {
		return "", classifyFailure(err, stderr, "download")
	}
	path, ok := findAudioFile(dir)
	if !ok {
		return "", apperr.New(apperr.ProviderUnavailable, "downloaded audio file not found")
	}
	return path, nil
}

func (y *YTDLP) commonArgs() []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--retries", "3",
		"--socket-timeout", "30",
		"--user-agent", userAgents[y.pick(len(userAgents))],
	}
	if y.proxy != "" {
		args = append(args, "--proxy", y.proxy)
	}
	return args
}

func findAudioFile(dir string) (string, bool) {
	for _, ext := range audioOutputExtensions {
		p := filepath.Join(dir, "audio"+ext)
		if st, err := os.Stat(p); err == nil && st.Size() > 0 {
			return p, true
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "audio.*"))
	for _, p := range matches {
		if !strings.HasSuffix(p, ".part") {
			return p, true
		}
	}
	return "", false
}

// classifyFailure maps a yt-dlp failure to a kind using its stderr.
func classifyFailure(err error, stderr []byte, op string) error {
	if ctxErr := apperr.FromContext(err); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, sysexec.ErrBinaryNotFound) {
		return apperr.Wrap(err, apperr.ProviderUnavailable, "yt-dlp is not installed")
	}

	tail := sysexec.Tail(string(stderr), 512)
	wrapped := goerr.Wrap(err, "yt-dlp "+op, goerr.V("stderr", tail))
	lower := strings.ToLower(string(stderr))
	switch {
	case containsAny(lower, botPhrases):
		return apperr.Wrap(wrapped, apperr.BotDetected, "video host blocked automated access")
	case containsAny(lower, networkPhrases):
		return apperr.Wrap(wrapped, apperr.NetworkError, "network error while contacting the video host")
	default:
		return apperr.Wrap(wrapped, apperr.ProviderUnavailable, fmt.Sprintf("yt-dlp %s failed", op))
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
