package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

type SpeechTranscript struct {
	Text            string
	Confidence      float64
	LanguageCode    string
	DurationSeconds float64
}

type Speech struct {
	client   *speech.Client
	language string
}

func NewSpeech(ctx context.Context, language string, opts ...option.ClientOption) (*Speech, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	if language == "" {
		language = "en-US"
	}
	return &Speech{client: c, language: language}, nil
}

func (s *Speech) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Recognize sends inline audio through LongRunningRecognize and waits for the operation.
func (s *Speech) Recognize(ctx context.Context, audio []byte, fileName string) (SpeechTranscript, error) {
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               s.language,
			Encoding:                   encodingFor(fileName),
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}
	op, err := s.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return SpeechTranscript{}, classify("speech recognize", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return SpeechTranscript{}, classify("speech operation", err)
	}
	return collectTranscript(resp, s.language), nil
}

func collectTranscript(resp *speechpb.LongRunningRecognizeResponse, language string) SpeechTranscript {
	out := SpeechTranscript{LanguageCode: language}
	if resp == nil {
		return out
	}

	var (
		full    strings.Builder
		confSum float64
		confN   int
	)
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteByte(' ')
		}
		full.WriteString(text)
		confSum += float64(alt.Confidence)
		confN++
		if r.LanguageCode != "" {
			out.LanguageCode = r.LanguageCode
		}
		if end := r.GetResultEndTime(); end != nil {
			out.DurationSeconds = end.AsDuration().Seconds()
		}
	}
	out.Text = full.String()
	if confN > 0 {
		out.Confidence = confSum / float64(confN)
	}
	return out
}

func encodingFor(fileName string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
