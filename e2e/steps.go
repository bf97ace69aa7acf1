package e2e

import (
	"github.com/cucumber/godog"

	"verichain/e2e/steps/common"
	"verichain/e2e/steps/credential"
	"verichain/e2e/steps/onboarding"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	onboarding.RegisterSteps(ctx, tc)
	credential.RegisterSteps(ctx, tc)
}
