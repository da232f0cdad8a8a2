package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// any run of non-newline whitespace, including no-break and other Unicode spaces
	horizontalSpace = regexp.MustCompile(`[\t\v\f\p{Zs}]+`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text. Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	// collapse after trimming so whitespace-only lines count as blank
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Abbreviate is Truncate with a trailing "..." when anything was cut.
func Abbreviate(s string, n int) string {
	cut := Truncate(s, n)
	if len(cut) == len(s) {
		return s
	}
	return cut + "..."
}
