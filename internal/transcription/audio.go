package transcription

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"studyflow/internal/apperr"
)

// bytes per second assumed when the container cannot be read
const fallbackByteRate = 16000

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".flac": true,
	".webm": true,
}

func IsAudioFile(fileName string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// ValidateAudio checks the name and sniffs the content of an uploaded file.
func ValidateAudio(data []byte, fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return apperr.New(apperr.InvalidInput, "file name is required")
	}
	if !IsAudioFile(fileName) {
		return apperr.New(apperr.UnsupportedType, fmt.Sprintf("%q is not a supported audio type", fileName)).
			WithSuggestion("Upload mp3, wav, m4a, aac, ogg, flac or webm audio.")
	}
	if len(data) == 0 {
		return apperr.New(apperr.InvalidInput, "audio file is empty")
	}
	mt := mimetype.Detect(data).String()
	if !strings.HasPrefix(mt, "audio/") && !strings.HasPrefix(mt, "video/") {
		return apperr.New(apperr.UnsupportedType, fmt.Sprintf("%q does not contain audio data (detected %s)", fileName, mt))
	}
	return nil
}

// EstimateDuration returns hint when positive, else the WAV header duration,
// else a size-based guess.
func EstimateDuration(data []byte, hint float64) float64 {
	if hint > 0 {
		return hint
	}
	if d, ok := wavDuration(data); ok {
		return d
	}
	return float64(len(data)) / fallbackByteRate
}

func wavDuration(data []byte) (float64, bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, false
	}
	var byteRate uint32
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, false
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, false
			}
			return float64(size) / float64(byteRate), true
		}
		next := body + int(size)
		if size%2 == 1 {
			next++
		}
		if next <= off {
			return 0, false
		}
		off = next
	}
	return 0, false
}
