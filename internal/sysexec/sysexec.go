// Package sysexec runs external binaries (yt-dlp, tesseract) with bounded output capture.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Runner executes name with args, feeding stdin when non-nil.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, err error)

var ErrBinaryNotFound = errors.New("binary not found")

func Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.Bytes(), stderr.Bytes(), ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, nil, goerr.Wrap(ErrBinaryNotFound, "lookup", goerr.V("binary", name))
	}
	return stdout.Bytes(), stderr.Bytes(), goerr.Wrap(err, "command failed",
		goerr.V("binary", name),
		goerr.V("stderr", Tail(stderr.String(), 2048)),
	)
}

// Tail keeps the last n bytes of s, trimmed.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
