package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"
)

const maxPartBytes = 64 << 20

func openContainer(data []byte) (*zip.Reader, error) {
	if !isZip(mimetype.Detect(data)) {
		return nil, fmt.Errorf("%w (detected %s)", errNotOOXML, mimetype.Detect(data).String())
	}
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func isZip(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func openPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxPartBytes))
	}
	return nil, fmt.Errorf("missing part %s", name)
}

// readDOCX walks word/document.xml collecting run text in reading order.
func readDOCX(data []byte) (string, error) {
	zr, err := openContainer(data)
	if err != nil {
		return "", err
	}
	part, err := openPart(zr, "word/document.xml")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	dec := xml.NewDecoder(bytes.NewReader(part))
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// stripDOCXMarkup drops every tag from the document body and keeps all text
// nodes, including ones the run walker skips (deleted runs, field codes).
func stripDOCXMarkup(data []byte) (string, error) {
	zr, err := openContainer(data)
	if err != nil {
		return "", err
	}
	part, err := openPart(zr, "word/document.xml")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	z := html.NewTokenizer(bytes.NewReader(part))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return b.String(), nil
			}
			return "", z.Err()
		case html.TextToken:
			b.Write(z.Text())
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "w:p" {
				b.WriteByte('\n')
			}
		}
	}
}

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slidePart struct {
	number int
	file   *zip.File
}

func (s *Service) readPPTXBounded(ctx context.Context, data []byte, fileName string) (string, bool, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, s.pptxTimeout, errSlideBudget)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := readPPTX(ctx, data)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(context.Cause(ctx), errSlideBudget) {
			return s.pptxPlaceholder(fileName, len(data)), true, nil
		}
		return out.text, false, out.err
	case <-ctx.Done():
		if errors.Is(context.Cause(ctx), errSlideBudget) {
			return s.pptxPlaceholder(fileName, len(data)), true, nil
		}
		return "", false, ctx.Err()
	}
}

var errSlideBudget = errors.New("slide extraction exceeded its time budget")

func (s *Service) pptxPlaceholder(fileName string, size int) string {
	s.logger.Warn("pptx extraction timed out, using placeholder", "file", fileName, "timeout", s.pptxTimeout.String())
	return fmt.Sprintf("PowerPoint file %q was uploaded but text extraction timed out after %s.\nFile size: %d KB.\nTry exporting the slides to PDF and uploading that instead.",
		fileName, s.pptxTimeout.Round(time.Second), size/1024)
}

func readPPTX(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	zr, err := openContainer(data)
	if err != nil {
		return "", err
	}

	var slides []slidePart
	for _, f := range zr.File {
		m := slidePartPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{number: n, file: f})
	}
	if len(slides) == 0 {
		return "", errors.New("presentation contains no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	sections := make([]string, 0, len(slides))
	for i, slide := range slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := readSlide(ctx, slide.file)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", slide.number, err)
		}
		if text == "" {
			sections = append(sections, fmt.Sprintf("Slide %d: [No text content]", i+1))
			continue
		}
		sections = append(sections, fmt.Sprintf("Slide %d:\n%s", i+1, text))
	}
	return strings.Join(sections, "\n\n---\n\n"), nil
}

func readSlide(ctx context.Context, f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	dec := xml.NewDecoder(io.LimitReader(rc, maxPartBytes))
	for n := 0; ; n++ {
		if n%512 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(current.String()); line != "" {
					paragraphs = append(paragraphs, line)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if line := strings.TrimSpace(current.String()); line != "" {
		paragraphs = append(paragraphs, line)
	}
	return strings.Join(paragraphs, "\n"), nil
}
