// Package gcp wraps the Google Cloud Vision and Speech clients used as
// alternative OCR and transcription backends.
package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions returns explicit credentials when a file or inline JSON is
// configured; otherwise the clients fall back to application default credentials.
func ClientOptions(credentials string) []option.ClientOption {
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return nil
	}
	if strings.HasPrefix(credentials, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credentials))}
	}
	return []option.ClientOption{option.WithCredentialsFile(credentials)}
}
