package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SetClientIP(ip string)
}

// RegisterSteps registers form creation rate limiting steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^my requests come from IP "([^"]*)"$`, steps.requestsFromIP)
	ctx.Step(`^I open (\d+) forms$`, steps.openForms)
	ctx.Step(`^the last response should be rate limited$`, steps.lastResponseRateLimited)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) requestsFromIP(ctx context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *ratelimitSteps) openForms(ctx context.Context, n int) error {
	for range n {
		if err := s.tc.POST("/forms", nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *ratelimitSteps) lastResponseRateLimited(ctx context.Context) error {
	if status := s.tc.GetLastResponseStatus(); status != 429 {
		return fmt.Errorf("expected 429, got %d: %s", status, s.tc.GetLastResponseBody())
	}
	code, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if code != "rate_limit_exceeded" {
		return fmt.Errorf("unexpected error code %v", code)
	}
	return nil
}
