package wizard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrCancelled is returned when the user aborts the wizard with Ctrl+C.
var ErrCancelled = terminal.InterruptErr

var tenantIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// ValidateTenantID validates a tenant UUID.
func ValidateTenantID(value interface{}) error {
	v := strings.TrimSpace(fmt.Sprintf("%v", value))
	if !tenantIDRegex.MatchString(v) {
		return fmt.Errorf("tenant ID must be a valid UUID")
	}
	return nil
}

// ValidateOptionalTenant accepts a blank value, a tenant UUID or a
// domain such as contoso.onmicrosoft.com.
func ValidateOptionalTenant(value interface{}) error {
	v := strings.TrimSpace(fmt.Sprintf("%v", value))
	if v == "" || strings.Contains(v, ".") {
		return nil
	}
	return ValidateTenantID(v)
}

// ValidateURNList checks a comma separated list of publisher:offer:sku entries.
func ValidateURNList(value interface{}) error {
	for _, entry := range SplitList(fmt.Sprintf("%v", value)) {
		if parts := strings.Split(entry, ":"); len(parts) < 3 || len(parts) > 4 {
			return fmt.Errorf("%q must be publisher:offer:sku", entry)
		}
	}
	return nil
}

// SplitList splits a comma separated answer, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateNonEmpty ensures a required value is provided.
func ValidateNonEmpty(value interface{}) error {
	if strings.TrimSpace(fmt.Sprintf("%v", value)) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// Prompter abstracts user interaction for testing.
type Prompter interface {
	Input(label, defaultValue string, validator survey.Validator) (string, error)
	Select(label string, options []string, defaultValue string) (string, error)
	Confirm(label string, defaultValue bool) (bool, error)
	MultiSelect(label string, options []string, defaults []string) ([]string, error)
}

// SurveyPrompter implements Prompter with survey/v2.
type SurveyPrompter struct{}

// NewSurveyPrompter returns a survey-based prompter.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{}
}

func (p *SurveyPrompter) Input(label, defaultValue string, validator survey.Validator) (string, error) {
	var value string
	var opts []survey.AskOpt
	if validator != nil {
		opts = append(opts, survey.WithValidator(validator))
	}
	err := survey.AskOne(&survey.Input{
		Message: label,
		Default: defaultValue,
	}, &value, opts...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (p *SurveyPrompter) Select(label string, options []string, defaultValue string) (string, error) {
	var value string
	err := survey.AskOne(&survey.Select{
		Message: label,
		Options: options,
		Default: defaultValue,
	}, &value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (p *SurveyPrompter) Confirm(label string, defaultValue bool) (bool, error) {
	var value bool
	err := survey.AskOne(&survey.Confirm{
		Message: label,
		Default: defaultValue,
	}, &value)
	if err != nil {
		return false, err
	}
	return value, nil
}

func (p *SurveyPrompter) MultiSelect(label string, options []string, defaults []string) ([]string, error) {
	var selected []string
	err := survey.AskOne(&survey.MultiSelect{
		Message: label,
		Options: options,
		Default: defaults,
	}, &selected)
	if err != nil {
		return nil, err
	}
	return selected, nil
}
