package e2e

import (
	"github.com/cucumber/godog"

	"regform/e2e/steps/common"
	"regform/e2e/steps/ratelimit"
	"regform/e2e/steps/registration"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register form filling and submission steps
	registration.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
}
