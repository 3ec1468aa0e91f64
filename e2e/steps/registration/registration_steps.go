package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	DELETE(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetFormID() string
	SetFormID(id string)
}

// validDetails passes every validator on any date after 2018.
var validDetails = [][2]string{
	{"fullName", "Budi Santoso"},
	{"email", "budi@example.com"},
	{"phone", "081234567890"},
	{"birthDate", "2000-01-31"},
	{"gender", "male"},
	{"address", "Jl. Merdeka 1"},
	{"city", "jakarta"},
	{"password", "Secr3t!pass"},
	{"confirmPassword", "Secr3t!pass"},
	{"terms", "on"},
}

// RegisterSteps registers form filling and submission steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrationSteps{tc: tc}

	ctx.Step(`^I open a new form$`, steps.openForm)
	ctx.Step(`^I enter "([^"]*)" into "([^"]*)"$`, steps.enter)
	ctx.Step(`^I fill the form with valid details$`, steps.fillValid)
	ctx.Step(`^I leave the "([^"]*)" field$`, steps.blur)
	ctx.Step(`^I select a photo "([^"]*)" of (\d+) bytes$`, steps.selectPhoto)
	ctx.Step(`^I submit the form$`, steps.submit)
	ctx.Step(`^I DELETE the current form$`, steps.deleteForm)
	ctx.Step(`^I toggle the visibility of "([^"]*)"$`, steps.toggleVisibility)
	ctx.Step(`^the "([^"]*)" field should be (masked|shown)$`, steps.fieldMasking)
	ctx.Step(`^I press Ctrl\+Enter$`, steps.pressSubmitShortcut)

	ctx.Step(`^the submission should be accepted$`, steps.submissionAccepted)
	ctx.Step(`^the submission should be rejected with (\d+) invalid fields?$`, steps.submissionRejected)
	ctx.Step(`^the "([^"]*)" error should read "([^"]*)"$`, steps.errorShouldRead)
	ctx.Step(`^the "([^"]*)" error should be hidden$`, steps.errorShouldBeHidden)
	ctx.Step(`^the alert should read "([^"]*)"$`, steps.alertShouldRead)
	ctx.Step(`^the "([^"]*)" value should be "([^"]*)"$`, steps.valueShouldBe)
}

type registrationSteps struct {
	tc TestContext
}

func (s *registrationSteps) formPath(suffix string) (string, error) {
	id := s.tc.GetFormID()
	if id == "" {
		return "", errors.New("no form opened in this scenario")
	}
	return "/forms/" + id + suffix, nil
}

func (s *registrationSteps) expectOK() error {
	if status := s.tc.GetLastResponseStatus(); status/100 != 2 {
		return fmt.Errorf("unexpected status %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *registrationSteps) openForm(ctx context.Context) error {
	if err := s.tc.POST("/forms", nil); err != nil {
		return err
	}
	if err := s.expectOK(); err != nil {
		return err
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetFormID(fmt.Sprint(id))
	return nil
}

func (s *registrationSteps) enter(ctx context.Context, value, field string) error {
	path, err := s.formPath("/fields/" + field)
	if err != nil {
		return err
	}
	if err := s.tc.PUT(path, map[string]string{"value": value}); err != nil {
		return err
	}
	return s.expectOK()
}

func (s *registrationSteps) fillValid(ctx context.Context) error {
	for _, kv := range validDetails {
		if err := s.enter(ctx, kv[1], kv[0]); err != nil {
			return fmt.Errorf("fill %s: %w", kv[0], err)
		}
	}
	return nil
}

func (s *registrationSteps) blur(ctx context.Context, field string) error {
	path, err := s.formPath("/fields/" + field + "/blur")
	if err != nil {
		return err
	}
	if err := s.tc.POST(path, nil); err != nil {
		return err
	}
	return s.expectOK()
}

func (s *registrationSteps) selectPhoto(ctx context.Context, name string, size int64) error {
	path, err := s.formPath("/photo")
	if err != nil {
		return err
	}
	if err := s.tc.POST(path, map[string]any{"name": name, "size_bytes": size}); err != nil {
		return err
	}
	return s.expectOK()
}

func (s *registrationSteps) submit(ctx context.Context) error {
	path, err := s.formPath("/submit")
	if err != nil {
		return err
	}
	if err := s.tc.POST(path, nil); err != nil {
		return err
	}
	return s.expectOK()
}

func (s *registrationSteps) pressSubmitShortcut(ctx context.Context) error {
	path, err := s.formPath("/keys")
	if err != nil {
		return err
	}
	if err := s.tc.POST(path, map[string]any{"key": "Enter", "ctrl": true}); err != nil {
		return err
	}
	return s.expectOK()
}

func (s *registrationSteps) toggleVisibility(ctx context.Context, field string) error {
	path, err := s.formPath("/fields/" + field + "/visibility")
	if err != nil {
		return err
	}
	if err := s.tc.POST(path, nil); err != nil {
		return err
	}
	return s.expectOK()
}

func (s *registrationSteps) fieldMasking(ctx context.Context, field, want string) error {
	masked, err := s.stateField("masked." + field)
	if err != nil {
		return err
	}
	if masked != (want == "masked") {
		return fmt.Errorf("%s: expected %s, masked=%v", field, want, masked)
	}
	return nil
}

func (s *registrationSteps) deleteForm(ctx context.Context) error {
	path, err := s.formPath("")
	if err != nil {
		return err
	}
	return s.tc.DELETE(path)
}

func (s *registrationSteps) submissionAccepted(ctx context.Context) error {
	accepted, err := s.tc.GetResponseField("result.accepted")
	if err != nil {
		return err
	}
	if accepted != true {
		return fmt.Errorf("submission rejected: %s", s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *registrationSteps) submissionRejected(ctx context.Context, want int) error {
	outcomes, err := s.tc.GetResponseField("result.outcomes")
	if err != nil {
		return err
	}
	list, ok := outcomes.([]any)
	if !ok {
		return fmt.Errorf("outcomes is not a list: %v", outcomes)
	}
	invalid := 0
	for _, o := range list {
		if m, ok := o.(map[string]any); ok && m["valid"] == false {
			invalid++
		}
	}
	if invalid != want {
		return fmt.Errorf("expected %d invalid fields, got %d: %s", want, invalid, s.tc.GetLastResponseBody())
	}
	return nil
}

// stateField finds a state field whether the last response is a bare state
// or wraps it under "state".
func (s *registrationSteps) stateField(path string) (any, error) {
	if v, err := s.tc.GetResponseField("state." + path); err == nil {
		return v, nil
	}
	return s.tc.GetResponseField(path)
}

func (s *registrationSteps) errorShouldRead(ctx context.Context, field, want string) error {
	visible, err := s.stateField("errors." + field + ".visible")
	if err != nil {
		return err
	}
	if visible != true {
		return fmt.Errorf("%s error is hidden", field)
	}
	msg, err := s.stateField("errors." + field + ".message")
	if err != nil {
		return err
	}
	if msg != want {
		return fmt.Errorf("%s error: expected %q, got %q", field, want, msg)
	}
	return nil
}

func (s *registrationSteps) errorShouldBeHidden(ctx context.Context, field string) error {
	visible, err := s.stateField("errors." + field + ".visible")
	if err != nil {
		return err
	}
	if visible != false {
		return fmt.Errorf("%s error is visible", field)
	}
	return nil
}

func (s *registrationSteps) alertShouldRead(ctx context.Context, want string) error {
	alert, err := s.stateField("alert")
	if err != nil {
		return err
	}
	if !strings.EqualFold(fmt.Sprint(alert), want) {
		return fmt.Errorf("alert: expected %q, got %q", want, alert)
	}
	return nil
}

func (s *registrationSteps) valueShouldBe(ctx context.Context, field, want string) error {
	value, err := s.stateField("values." + field)
	if err != nil {
		return err
	}
	if value != want {
		return fmt.Errorf("%s value: expected %q, got %q", field, want, value)
	}
	return nil
}
