package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryForTaskIsDeterministic(t *testing.T) {
	cases := map[TaskKind]FallbackCategory{
		TaskEnhance:          FallbackEnhance,
		TaskSummarize:        FallbackSummarize,
		TaskQuestions:        FallbackQuestions,
		TaskQuiz:             FallbackQuestions,
		TaskFlashcards:       FallbackFlashcards,
		TaskHealth:           FallbackHealth,
		TaskIntent:           FallbackChat,
		TaskDocumentAnalysis: FallbackDefault,
		TaskVideoAnalysis:    FallbackDefault,
	}
	for task, want := range cases {
		// the prompt wording must not move a labeled task to another category
		assert.Equal(t, want, CategoryFor(task, "hello, please summarize and quiz me"), task)
		assert.Equal(t, CategoryFor(task, "a"), CategoryFor(task, "b"), task)
	}
}

func TestCategoryForChatUsesWholeWords(t *testing.T) {
	cases := map[string]FallbackCategory{
		"hi there":                        FallbackChat,
		"Can you improve my essay?":       FallbackEnhance,
		"I need a summary of chapter 3":   FallbackSummarize,
		"Give me a quiz":                  FallbackQuestions,
		"make flashcards for me":          FallbackFlashcards,
		"is the service working":          FallbackHealth,
		"Tell me about this":              FallbackChat,
		"this chapter is about highlands": FallbackChat,
	}
	for prompt, want := range cases {
		assert.Equal(t, want, CategoryFor(TaskChat, prompt), prompt)
	}

	// substrings such as "hi" inside "this" or "history" do not count
	assert.Equal(t, FallbackDefault, CategoryFor("", "the history of philosophy"))
	assert.Equal(t, FallbackQuestions, CategoryFor("", "five questions on history"))
}

func TestFallbackTextUnknownCategory(t *testing.T) {
	assert.Equal(t, FallbackText(FallbackDefault), FallbackText("nope"))
	for _, c := range []FallbackCategory{FallbackChat, FallbackEnhance, FallbackSummarize, FallbackQuestions, FallbackFlashcards, FallbackHealth} {
		assert.NotEqual(t, FallbackText(FallbackDefault), FallbackText(c), c)
	}
}
