package gcp

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"studyflow/internal/apperr"
)

type Vision struct {
	client *vision.ImageAnnotatorClient
}

func NewVision(ctx context.Context, opts ...option.ClientOption) (*Vision, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Vision{client: c}, nil
}

func (v *Vision) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

// DetectDocumentText runs DOCUMENT_TEXT_DETECTION on one image and returns the
// full text with the mean page confidence.
func (v *Vision) DetectDocumentText(ctx context.Context, img []byte) (string, float64, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", 0, classify("vision annotate", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", 0, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", 0, apperr.New(apperr.ProviderUnavailable, "vision annotate: "+r0.Error.Message)
	}
	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return "", 0, nil
	}

	var sum float64
	for _, p := range fta.Pages {
		sum += float64(p.GetConfidence())
	}
	conf := 0.0
	if len(fta.Pages) > 0 {
		conf = sum / float64(len(fta.Pages))
	}
	return fta.Text, conf, nil
}
