package transcription

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	// MockNotice is appended to notes built from synthetic transcripts.
	MockNotice = "This is a mock transcription generated for development/testing purposes."

	wordsPerMinute  = 150
	chapterSeconds  = 300
	maxChapters     = 5
	minSyntheticLen = 10
)

type flavor int

const (
	flavorGeneral flavor = iota
	flavorMusic
	flavorEducational
)

var flavorSentences = map[flavor][]string{
	flavorMusic: {
		"This is a music video featuring instrumental and vocal performances.",
		"The song includes various musical elements and artistic expression.",
		"Musical composition with rhythm, melody, and harmonic progression.",
	},
	flavorEducational: {
		"Welcome to this educational content. Today we'll be discussing important concepts.",
		"Let's explore the key principles and understand the fundamental ideas.",
		"This tutorial will guide you through step-by-step instructions and examples.",
	},
	flavorGeneral: {
		"This video contains spoken content with various topics and discussions.",
		"The presentation includes information, explanations, and detailed coverage.",
		"Content covers multiple aspects with comprehensive analysis and insights.",
	},
}

var summaryTemplates = []string{
	`This content from "%s" provides comprehensive coverage of the main topics discussed.`,
	`The video "%s" presents detailed information and analysis on various subjects.`,
	`"%s" offers insights and explanations covering multiple important aspects.`,
}

// Synthesizer produces placeholder transcripts sized by duration.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSynthesizer uses rnd for sentence choice and confidence; nil seeds a
// random source.
func NewSynthesizer(rnd *rand.Rand) *Synthesizer {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthesizer{rnd: rnd}
}

func (s *Synthesizer) Generate(title string, durationSeconds float64) Result {
	if title = strings.TrimSpace(title); title == "" {
		title = "Unknown Title"
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := EstimatedWords(durationSeconds)
	if target < minSyntheticLen {
		target = minSyntheticLen
	}
	sentences := flavorSentences[flavorFor(title)]

	words := make([]string, 0, target+16)
	for len(words) < target {
		words = append(words, strings.Fields(sentences[s.rnd.IntN(len(sentences))])...)
	}
	words = words[:target]

	return Result{
		Text:            strings.Join(words, " "),
		Confidence:      0.85 + s.rnd.Float64()*0.1,
		LanguageCode:    "en",
		DurationSeconds: durationSeconds,
		WordCount:       target,
		IsMock:          true,
		Provider:        ProviderMock,
		Summary:         fmt.Sprintf(summaryTemplates[s.rnd.IntN(len(summaryTemplates))], title),
		Chapters:        Chapters(durationSeconds),
	}
}

// EstimatedWords is the spoken word count for a duration at 150 wpm.
func EstimatedWords(durationSeconds float64) int {
	return int(math.Floor(durationSeconds / 60 * wordsPerMinute))
}

// Chapters splits durations of five minutes or more into at most five
// evenly spaced chapters.
func Chapters(durationSeconds float64) []Chapter {
	if durationSeconds < chapterSeconds {
		return nil
	}
	count := min(int(durationSeconds/chapterSeconds), maxChapters)
	span := durationSeconds / float64(count)
	chapters := make([]Chapter, count)
	for i := range chapters {
		chapters[i] = Chapter{
			Start:    int(math.Floor(float64(i) * span)),
			End:      int(math.Floor(float64(i+1) * span)),
			Headline: fmt.Sprintf("Chapter %d: Key Topics", i+1),
			Summary:  "This section covers important concepts and detailed explanations.",
		}
	}
	return chapters
}

func flavorFor(title string) flavor {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "music"), strings.Contains(t, "song"), strings.Contains(t, "official"):
		return flavorMusic
	case strings.Contains(t, "tutorial"), strings.Contains(t, "learn"), strings.Contains(t, "how to"):
		return flavorEducational
	default:
		return flavorGeneral
	}
}
