package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var sdkSafetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// SDKClient is the transport backed by github.com/google/generative-ai-go.
type SDKClient struct {
	settings
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewSDK(ctx context.Context, apiKey, model string, opts ...Option) (*SDKClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(apiKey)))
	if err != nil {
		return nil, err
	}

	c := &SDKClient{client: client}
	c.apply(opts)

	m := client.GenerativeModel(strings.TrimSpace(model))
	m.SetTemperature(float32(c.config.Temperature))
	m.SetTopK(int32(c.config.TopK))
	m.SetTopP(float32(c.config.TopP))
	m.SetMaxOutputTokens(int32(c.config.MaxOutputTokens))
	for _, category := range sdkSafetyCategories {
		m.SafetySettings = append(m.SafetySettings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockMediumAndAbove,
		})
	}
	c.model = m
	return c, nil
}

func (c *SDKClient) Close() error {
	return c.client.Close()
}

func (c *SDKClient) Generate(ctx context.Context, prompt string) (string, error) {
	started := time.Now()
	statusCode := http.StatusOK

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		converted := convertSDKError(err)
		var apiErr *Error
		if errors.As(converted, &apiErr) {
			statusCode = apiErr.StatusCode
		} else {
			statusCode = 0
		}
		c.observe(endpointGenerate, statusCode, time.Since(started))
		return "", converted
	}
	c.observe(endpointGenerate, statusCode, time.Since(started))

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "response has no candidates"}
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if text, ok := p.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "empty candidate text"}
	}
	return b.String(), nil
}

// convertSDKError maps SDK errors onto *Error. Context errors and anything
// without an HTTP status pass through untouched.
func convertSDKError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &Error{StatusCode: http.StatusBadRequest, Status: "BLOCKED", Message: blocked.Error()}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &Error{StatusCode: gerr.Code, Message: gerr.Message, Body: truncateBody(gerr.Body)}
	}
	var aerr *apierror.APIError
	if errors.As(err, &aerr) && aerr.HTTPCode() > 0 {
		return &Error{StatusCode: aerr.HTTPCode(), Status: aerr.Reason(), Message: aerr.Error()}
	}
	return err
}
