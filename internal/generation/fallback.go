package generation

import (
	"strings"
	"unicode"
)

type FallbackCategory string

const (
	FallbackChat       FallbackCategory = "chat"
	FallbackEnhance    FallbackCategory = "enhance"
	FallbackSummarize  FallbackCategory = "summarize"
	FallbackQuestions  FallbackCategory = "questions"
	FallbackFlashcards FallbackCategory = "flashcards"
	FallbackHealth     FallbackCategory = "health"
	FallbackDefault    FallbackCategory = "default"
)

var fallbackTexts = map[FallbackCategory]string{
	FallbackChat:       "Hello! I'm currently experiencing high demand and my AI service quota has been reached for today. However, I'm still here to help! Please try again tomorrow, or contact support if you need immediate assistance.",
	FallbackEnhance:    "I'd love to help enhance your content, but I'm currently at my daily API limit. Your content looks great as is! Please try again tomorrow for AI-powered enhancements.",
	FallbackSummarize:  "I'm unable to generate a summary right now due to API limits. Please try again tomorrow, or you can create a manual summary by identifying the key points and main ideas in your content.",
	FallbackQuestions:  "I can't generate questions right now due to API quota limits. Try creating your own study questions by focusing on key concepts, definitions, and important facts from your material.",
	FallbackFlashcards: "Flashcard generation is temporarily unavailable due to API limits. You can create effective flashcards by putting key terms on one side and definitions/explanations on the other.",
	FallbackHealth:     "AI service is operational but currently limited due to daily quota restrictions. Service will be fully restored tomorrow.",
	FallbackDefault:    "I'm currently experiencing high demand and have reached my daily API quota. Please try again tomorrow for full AI assistance. Thank you for your patience!",
}

var taskCategories = map[TaskKind]FallbackCategory{
	TaskEnhance:    FallbackEnhance,
	TaskSummarize:  FallbackSummarize,
	TaskQuestions:  FallbackQuestions,
	TaskQuiz:       FallbackQuestions,
	TaskFlashcards: FallbackFlashcards,
	TaskHealth:     FallbackHealth,
	TaskIntent:     FallbackChat,
}

// keyword rules are checked in order; the first rule with a matching word wins.
var keywordRules = []struct {
	category FallbackCategory
	words    []string
}{
	{FallbackChat, []string{"chat", "hello", "hi"}},
	{FallbackEnhance, []string{"enhance", "improve"}},
	{FallbackSummarize, []string{"summarize", "summary"}},
	{FallbackQuestions, []string{"question", "questions", "quiz"}},
	{FallbackFlashcards, []string{"flashcard", "flashcards"}},
	{FallbackHealth, []string{"health", "working"}},
}

// CategoryFor picks the fallback category for a task. Known tasks map
// directly; chat and unlabeled requests fall back to keywords in the prompt.
func CategoryFor(task TaskKind, prompt string) FallbackCategory {
	if c, ok := taskCategories[task]; ok {
		return c
	}
	if task != TaskChat && task != "" {
		return FallbackDefault
	}

	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		words[w] = struct{}{}
	}
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if _, ok := words[w]; ok {
				return rule.category
			}
		}
	}
	if task == TaskChat {
		return FallbackChat
	}
	return FallbackDefault
}

func FallbackText(category FallbackCategory) string {
	if text, ok := fallbackTexts[category]; ok {
		return text
	}
	return fallbackTexts[FallbackDefault]
}
