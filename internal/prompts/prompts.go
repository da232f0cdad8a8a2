// Package prompts builds the task prompts sent to the generation client.
package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"studyflow/internal/textutil"
)

const HealthCheck = "health check test"

// TitleExcerptChars is how much of a document the title prompt sees.
const TitleExcerptChars = 500

const MaxTitleChars = 60

const quizSchema = `{
  "title": "Quiz title",
  "description": "One sentence on what the quiz covers",
  "questions": [
    {
      "question": "Question text",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": 0,
      "incorrectAnswer": 1,
      "explanation": "Why the correct option is right"
    }
  ]
}`

const flashcardSchema = `{
  "title": "Flashcard set title",
  "description": "One sentence on what the cards cover",
  "cards": [
    {
      "front": "Question or term",
      "back": "Answer or definition",
      "difficulty": "easy|medium|hard",
      "tags": ["topic"]
    }
  ]
}`

func Chat(message string) string {
	return fmt.Sprintf(`You are a study assistant on a learning platform. Reply to the student below.

Student message: %s

Answer clearly and accurately, keep the tone encouraging, and stay focused on helping them learn.

Response:`, message)
}

func EnhanceNote(content string) string {
	return fmt.Sprintf(`Improve the following study note. Reorganize it under clear headings and bullet points, explain terse passages, add the key concepts a student would need, and keep it concise.

Original note:
%s

Enhanced note:`, content)
}

func SummarizeNote(content string) string {
	return fmt.Sprintf(`Write a well-structured summary of the study note below. Capture the main points and key concepts as bullet points or a numbered list, keep the essential facts, and use plain student-friendly language.

Note:
%s

Summary:`, content)
}

func StudyQuestions(content string) string {
	return fmt.Sprintf(`Write 5 to 8 study questions based on the note below. Mix multiple choice, short answer and essay questions of varying difficulty, aim at understanding rather than recall, and give the answer or key points after each question.

Note:
%s

Study questions:`, content)
}

func Flashcards(content string) string {
	return fmt.Sprintf(`Create 8 to 12 flashcards from the note below covering its most important terms, definitions and concepts. Use this format for every card:
Q: <question>
A: <answer>

Note:
%s

Flashcards:`, content)
}

func ExplainConcept(concept, context string) string {
	if strings.TrimSpace(context) == "" {
		context = "general study"
	}
	return fmt.Sprintf(`You are a tutor. Explain the concept below in simple terms, step by step, using an analogy or example where it helps and mentioning practical applications when relevant.

Concept: %s
Context: %s

Explanation:`, concept, context)
}

func StudyPlan(subject, timeframe, goals string) string {
	return fmt.Sprintf(`Create a personalised study plan.

Subject: %s
Timeframe: %s
Goals: %s

Include a daily or weekly schedule, concrete learning objectives, recommended study methods, progress milestones, time allocation per topic, and review sessions.

Study plan:`, subject, timeframe, goals)
}

func AssessLearning(responses, correctAnswers string) string {
	return fmt.Sprintf(`Assess a student's quiz performance.

Student responses: %s
Correct answers: %s

Give an overall assessment, strengths and weak areas, feedback on each incorrect answer, and concrete study recommendations. End on an encouraging next step.

Assessment:`, responses, correctAnswers)
}

func DocumentNotes(text, fileName string) string {
	if strings.TrimSpace(fileName) == "" {
		fileName = "Uploaded Document"
	}
	return fmt.Sprintf(`Turn the document below into detailed study notes.

Document name: %s
Document content:
%s

The notes should open with a descriptive title and then cover the main topics, important definitions and facts, formulas or procedures, relevant examples, and key takeaways. Use headings and bullet points.

Study notes:`, fileName, text)
}

// VideoFields are the caller-supplied details of a video to analyze.
type VideoFields struct {
	Title       string
	Description string
	Transcript  string
}

func AnalyzeVideo(v VideoFields) string {
	field := func(s, what string) string {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return "No " + what + " provided"
	}
	return fmt.Sprintf(`You analyze educational videos and write study notes from them.

Video Title: %s
Video Description: %s
Transcript: %s

Write detailed study notes covering the main topics and key concepts, important definitions and explanations, and the key takeaways. Use headings and bullet points, and end with a short summary.

Study notes:`, field(v.Title, "title"), field(v.Description, "description"), field(v.Transcript, "transcript"))
}

// Profile personalizes the action detection prompt.
type Profile struct {
	Name          string
	Level         int
	ResponseStyle string
}

func ActionDetection(message string, p Profile) string {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "User"
	}
	if p.Level <= 0 {
		p.Level = 1
	}
	if strings.TrimSpace(p.ResponseStyle) == "" {
		p.ResponseStyle = "detailed"
	}
	return fmt.Sprintf(`You are the assistant of a study platform. Decide which action the user's message asks for.

User: %s (level %d, prefers %s answers)
Message: %s

Available actions:
- create_note: write or save a study note
- create_quiz: build a quiz on a topic or note
- create_flashcards: build flashcards on a topic or note
- analyze_video: analyze a video link
- process_document: work with an uploaded document
- explain_concept: explain a concept
- chat: anything else

Reply with JSON only:
{
  "action": "one of the actions above",
  "confidence": "high|medium|low",
  "parameters": {"topic": "...", "url": "...", "title": "..."},
  "response": "a short reply to show the user"
}`, p.Name, p.Level, p.ResponseStyle, message)
}

// TranscriptSource describes where a transcript came from.
type TranscriptSource struct {
	Title       string
	SourceURL   string
	Description string
}

func AnalyzeTranscript(src TranscriptSource, transcript string) string {
	var header strings.Builder
	if src.Title != "" {
		fmt.Fprintf(&header, "Title: %s\n", src.Title)
	}
	if src.SourceURL != "" {
		fmt.Fprintf(&header, "Source: %s\n", src.SourceURL)
	}
	if d := strings.TrimSpace(src.Description); d != "" {
		fmt.Fprintf(&header, "Description: %s\n", textutil.Truncate(d, 1000))
	}
	return fmt.Sprintf(`Analyze the transcript below and turn it into study material.

%s
Transcript:
%s

Organise the answer into these sections with headings:
1. Summary: two or three paragraphs on the main content.
2. Key Topics
3. Important Points
4. Key Quotes, if any
5. Learning Objectives
6. Study Questions: 5 to 7 questions.
7. Additional Notes: background and connections to other topics.`, header.String(), transcript)
}

func TopicQuiz(topic, difficulty string, questionCount int) string {
	return fmt.Sprintf(`Create a multiple choice quiz.

Topic: %s
Difficulty: %s
Number of questions: %d

Respond with JSON in exactly this shape:
%s

Rules:
- exactly %d questions, each with 4 options
- correctAnswer is the index of the right option; incorrectAnswer is the index of a common wrong choice
- test understanding rather than recall and explain every answer

Return only the JSON object.`, topic, difficulty, questionCount, quizSchema, questionCount)
}

type QuizOptions struct {
	Title         string
	Category      string
	Difficulty    string
	QuestionCount int
}

func QuizFromNote(content string, opts QuizOptions) string {
	return fmt.Sprintf(`Create a multiple choice quiz from the study note below.

Note:
%s

Title: %s
Category: %s
Difficulty: %s
Number of questions: %d

Respond with JSON in exactly this shape:
%s

Rules:
- exactly %d questions, each with 4 options, all answerable from the note
- correctAnswer is the index of the right option; incorrectAnswer is the index of a common wrong choice
- test understanding rather than recall and explain every answer

Return only the JSON object.`, content, opts.Title, opts.Category, opts.Difficulty, opts.QuestionCount, quizSchema, opts.QuestionCount)
}

type FlashcardOptions struct {
	Title     string
	Category  string
	CardCount int
}

func FlashcardsFromNote(content string, opts FlashcardOptions) string {
	return fmt.Sprintf(`Create study flashcards from the note below.

Note:
%s

Title: %s
Category: %s
Number of cards: %d

Respond with JSON in exactly this shape:
%s

Rules:
- exactly %d cards covering the most important concepts
- the front is a short question or term, the back a clear answer or definition
- difficulty is one of easy, medium, hard
- tags group cards by topic

Return only the JSON object.`, content, opts.Title, opts.Category, opts.CardCount, flashcardSchema, opts.CardCount)
}

// NoteTitle asks for a short title from the beginning of a document.
func NoteTitle(text string) string {
	return fmt.Sprintf(`Suggest a short, descriptive title (at most 60 characters) for study notes based on this excerpt. Reply with the title only.

%s`, textutil.Truncate(text, TitleExcerptChars))
}

// CleanTitle strips wrapping quotes and a leading "Title:" label from a model
// reply and caps it at MaxTitleChars. It returns "" when nothing usable is left.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, "*# ")
	if len(title) >= 6 && strings.EqualFold(title[:6], "title:") {
		title = strings.Trim(title[6:], "*# ")
	}
	for len(title) > 1 && isQuote(title[0]) && isQuote(title[len(title)-1]) {
		title = strings.TrimSpace(title[1 : len(title)-1])
	}
	title = strings.Trim(title, `"'`)
	if utf8.RuneCountInString(title) > MaxTitleChars {
		title = strings.TrimSpace(string([]rune(title)[:MaxTitleChars]))
	}
	return title
}

func isQuote(b byte) bool {
	return b == '"' || b == '\'' || b == '`'
}
