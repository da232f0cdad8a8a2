package ocr

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"studyflow/internal/sysexec"
)

type Tesseract struct {
	path      string
	languages string
	run       sysexec.Runner
}

func NewTesseract(path, languages string, run sysexec.Runner) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if languages == "" {
		languages = "eng+vie"
	}
	if run == nil {
		run = sysexec.Run
	}
	return &Tesseract{path: path, languages: languages, run: run}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, image []byte, _ string) (Recognition, error) {
	stdout, _, err := t.run(ctx, t.path, []string{"stdin", "stdout", "-l", t.languages, "tsv"}, image)
	if err != nil {
		return Recognition{}, err
	}
	return parseTSV(stdout), nil
}

type lineKey struct {
	page, block, par, line int
}

// parseTSV rebuilds text from tesseract's word-level TSV output. Lines keep
// their order; a new paragraph or block starts after a blank line.
func parseTSV(data []byte) Recognition {
	var (
		b        strings.Builder
		prev     *lineKey
		confSum  float64
		confN    int
		scanner  = bufio.NewScanner(bytes.NewReader(data))
		isHeader = true
	)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		if isHeader {
			isHeader = false
			if strings.HasPrefix(scanner.Text(), "level") {
				continue
			}
		}
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		key := lineKey{page: atoi(cols[1]), block: atoi(cols[2]), par: atoi(cols[3]), line: atoi(cols[4])}
		switch {
		case prev == nil:
		case prev.page != key.page || prev.block != key.block || prev.par != key.par:
			b.WriteString("\n\n")
		case prev.line != key.line:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(word)
		prev = &key

		confSum += conf
		confN++
	}

	rec := Recognition{Text: b.String()}
	if confN > 0 {
		rec.Confidence = confSum / float64(confN) / 100
	}
	return rec
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
