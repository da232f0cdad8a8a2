package media

import (
	"regexp"
	"strings"

	"studyflow/internal/apperr"
)

var (
	validURLPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com|youtu\.be)/.+`)

	videoIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/watch\?(?:[^#]*&)?v=([\w-]+)`),
		regexp.MustCompile(`youtu\.be/([\w-]+)`),
		regexp.MustCompile(`youtube\.com/(?:embed|shorts)/([\w-]+)`),
	}
)

// CleanURL rewrites known video URL shapes to the canonical watch URL,
// dropping playlist and tracking parameters. Unknown shapes are returned
// trimmed but otherwise unchanged.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return "https://www.youtube.com/watch?v=" + m[1]
		}
	}
	return raw
}

func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.New(apperr.InvalidURL, "video URL is required")
	}
	if !validURLPattern.MatchString(raw) {
		return apperr.New(apperr.InvalidURL, "not a valid YouTube URL").
			WithSuggestion("Paste a link like https://www.youtube.com/watch?v=VIDEO_ID.")
	}
	return nil
}
