package structured

import (
	"encoding/json"
	"strings"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Card struct {
	Front      string   `json:"front"`
	Back       string   `json:"back"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type FlashcardSet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Cards       []Card `json:"cards"`
}

type FlashcardDefaults struct {
	Title       string
	Description string
	Category    string
}

const (
	defaultFlashcardTitle       = "Generated Flashcards"
	defaultFlashcardDescription = "AI-generated flashcards from note content"
	defaultCategory             = "General"
)

func (d FlashcardDefaults) normalized() FlashcardDefaults {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = defaultFlashcardTitle
	}
	if strings.TrimSpace(d.Description) == "" {
		d.Description = defaultFlashcardDescription
	}
	if strings.TrimSpace(d.Category) == "" {
		d.Category = defaultCategory
	}
	return d
}

func FallbackFlashcards(d FlashcardDefaults) FlashcardSet {
	d = d.normalized()
	return FlashcardSet{
		Title:       d.Title,
		Description: defaultFlashcardDescription,
		Cards: []Card{{
			Front:      "What is the main concept in this note?",
			Back:       "The main concept is based on the note content.",
			Difficulty: DifficultyMedium,
			Tags:       []string{d.Category},
		}},
	}
}

// ParseFlashcards never fails: cards without a front or back are dropped and
// an empty result is replaced by FallbackFlashcards.
func ParseFlashcards(raw string, d FlashcardDefaults) (FlashcardSet, Report) {
	d = d.normalized()

	obj, err := extractObject(raw)
	if err != nil {
		return FallbackFlashcards(d), Report{Fallback: true, Reason: err.Error()}
	}
	title, description, items, err := decodeItems(obj, "cards")
	if err != nil {
		return FallbackFlashcards(d), Report{Fallback: true, Reason: "invalid flashcard structure: " + err.Error()}
	}

	set := FlashcardSet{Title: title, Description: description}
	if set.Title == "" {
		set.Title = d.Title
	}
	if set.Description == "" {
		set.Description = d.Description
	}

	var report Report
	for _, item := range items {
		card, ok := validateCard(item)
		if !ok {
			report.Dropped++
			continue
		}
		set.Cards = append(set.Cards, card)
	}
	if len(set.Cards) == 0 {
		report.Fallback = true
		if len(items) == 0 {
			report.Reason = "response has no cards"
		} else {
			report.Reason = "no card passed validation"
		}
		return FallbackFlashcards(d), report
	}
	return set, report
}

type rawCard struct {
	Front      string          `json:"front"`
	Back       string          `json:"back"`
	Difficulty json.RawMessage `json:"difficulty"`
	Tags       json.RawMessage `json:"tags"`
}

func validateCard(item json.RawMessage) (Card, bool) {
	var rc rawCard
	if err := json.Unmarshal(item, &rc); err != nil {
		return Card{}, false
	}
	card := Card{
		Front:      strings.TrimSpace(rc.Front),
		Back:       strings.TrimSpace(rc.Back),
		Difficulty: normalizeDifficulty(rawString(rc.Difficulty)),
		Tags:       parseTags(rc.Tags),
	}
	if card.Front == "" || card.Back == "" {
		return Card{}, false
	}
	return card, true
}

func normalizeDifficulty(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// parseTags accepts a JSON array of strings or a single comma separated string.
func parseTags(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return []string{}
		}
		list = strings.Split(joined, ",")
	}
	return dedupeTags(list)
}

func dedupeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		tag := strings.TrimSpace(t)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
