package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context these steps use.
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	ResponseContains(field string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers request and assertion steps shared by every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^verichain is running$`, steps.serviceIsRunning)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.responseFieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should not be empty$`, steps.responseFieldShouldNotBeEmpty)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/live", nil); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, 200)
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if actual := s.tc.GetLastResponseStatus(); actual != expected {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expected, actual, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, field string) error {
	if !s.tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain field: %s\nResponse: %s", field, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(value); actual != expected {
		return fmt.Errorf("expected %s to equal %q but got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeBool(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("field %s is not a boolean: %v", field, value)
	}
	if fmt.Sprint(b) != expected {
		return fmt.Errorf("expected %s to be %s", field, expected)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldNotBeEmpty(ctx context.Context, field string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if value == nil || fmt.Sprint(value) == "" {
		return fmt.Errorf("expected %s to be set\nResponse: %s", field, s.tc.GetLastResponseBody())
	}
	return nil
}
