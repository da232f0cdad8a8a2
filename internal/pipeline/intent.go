package pipeline

import (
	"context"
	"strings"

	"studyflow/internal/apperr"
	"studyflow/internal/generation"
	"studyflow/internal/prompts"
	"studyflow/internal/structured"
)

// ConfidenceFallback marks an intent answered from the canned quota text.
const ConfidenceFallback = "fallback"

type IntentInput struct {
	Message       string
	UserName      string
	Level         int
	ResponseStyle string
	UserID        string
}

type IntentResult struct {
	Intent        structured.Intent `json:"intent"`
	Report        structured.Report `json:"report"`
	QuotaFallback bool              `json:"quota_fallback"`
}

// Intent works out which study action a chat message asks for. Replies that
// are not usable JSON become plain chat.
func (s *Service) Intent(ctx context.Context, in IntentInput) (IntentResult, error) {
	return runFlow(ctx, s, FlowIntent, in.UserID, func(ctx context.Context) (IntentResult, error) {
		message := strings.TrimSpace(in.Message)
		if message == "" {
			return IntentResult{}, apperr.AtStage(apperr.New(apperr.InvalidInput, "message is required"), apperr.StageValidate)
		}

		out := s.generator.Generate(ctx, generation.Request{
			Prompt: prompts.ActionDetection(message, prompts.Profile{
				Name:          in.UserName,
				Level:         in.Level,
				ResponseStyle: in.ResponseStyle,
			}),
			Task: generation.TaskIntent,
		})
		if !out.Usable() {
			return IntentResult{}, out.Err()
		}
		if out.Status == generation.StatusQuotaFallback {
			return IntentResult{
				Intent: structured.Intent{
					Action:     structured.ActionChat,
					Confidence: ConfidenceFallback,
					Parameters: map[string]any{},
					Response:   out.Text,
				},
				QuotaFallback: true,
			}, nil
		}

		intent, report := structured.ParseIntent(out.Text)
		s.logger.Debug("intent detected",
			"user_id", in.UserID,
			"action", intent.Action,
			"confidence", intent.Confidence,
			"fallback", report.Fallback,
			"reason", report.Reason,
		)
		return IntentResult{Intent: intent, Report: report}, nil
	})
}
