package generation

import (
	"context"

	"studyflow/internal/prompts"
)

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

type HealthReport struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message"`
	RequestCount int64        `json:"request_count"`
	QuotaLimited bool         `json:"quota_limited,omitempty"`
	Breaker      string       `json:"circuit_breaker"`
}

// Health sends a short test prompt through the normal path and grades the result.
func (c *Client) Health(ctx context.Context) HealthReport {
	out := c.Generate(ctx, Request{Prompt: prompts.HealthCheck, Task: TaskHealth})

	report := HealthReport{Breaker: c.breaker.State().String()}
	switch {
	case out.Status == StatusSuccess:
		report.Status = Healthy
		report.Message = "AI service is fully operational"
	case out.Status == StatusQuotaFallback:
		report.Status = Degraded
		report.Message = "AI service is operational but quota limited"
		report.QuotaLimited = true
	default:
		report.Status, report.Message = gradeFailure(out)
	}
	report.RequestCount = c.RequestCount()
	return report
}

func gradeFailure(out Outcome) (HealthStatus, string) {
	switch out.Cause {
	case CauseOverloaded:
		return Degraded, "AI service is temporarily overloaded but should recover shortly"
	case CauseRateLimit:
		return Degraded, "AI service is rate limited but operational"
	case CauseNetwork, CauseTimeout:
		return Degraded, "AI service has connectivity issues"
	case CauseCircuitOpen, CauseServer:
		return Degraded, "AI service is temporarily unavailable"
	default:
		return Unhealthy, out.Message
	}
}
