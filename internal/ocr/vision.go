package ocr

import "context"

type documentTextDetector interface {
	DetectDocumentText(ctx context.Context, img []byte) (string, float64, error)
}

// Vision adapts a Cloud Vision client to the Engine interface.
type Vision struct {
	client documentTextDetector
}

func NewVision(client documentTextDetector) *Vision {
	return &Vision{client: client}
}

func (v *Vision) Name() string { return "gcp-vision" }

func (v *Vision) Recognize(ctx context.Context, image []byte, _ string) (Recognition, error) {
	text, conf, err := v.client.DetectDocumentText(ctx, image)
	if err != nil {
		return Recognition{}, err
	}
	return Recognition{Text: text, Confidence: conf}, nil
}
