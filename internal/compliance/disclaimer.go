package compliance

import (
	"fmt"
	"strings"
)

// DisclaimerLevel represents the verbosity of the disclaimer.
type DisclaimerLevel string

const (
	DisclaimerShort DisclaimerLevel = "short"
	DisclaimerFull  DisclaimerLevel = "full"
)

const (
	disclaimerShortText = "Estimates only, subject to bank approval."

	disclaimerFullText = "These figures are indicative estimates based on current MAS TDSR, MSR and LTV rules at a stress-test interest rate. They are not a loan offer or financial advice, and final approval rests with the lender."
)

// DisclaimerConfig configures the disclaimer service.
type DisclaimerConfig struct {
	Level   DisclaimerLevel
	Enabled bool
	// CustomText overrides the default template.
	CustomText string
}

// DefaultDisclaimerConfig returns sensible defaults.
func DefaultDisclaimerConfig() DisclaimerConfig {
	return DisclaimerConfig{Level: DisclaimerShort, Enabled: true}
}

// DisclaimerService appends estimate disclaimers to calculator replies.
type DisclaimerService struct {
	config DisclaimerConfig
}

// NewDisclaimerService creates a new disclaimer service.
func NewDisclaimerService(config DisclaimerConfig) *DisclaimerService {
	return &DisclaimerService{config: config}
}

// Text returns the configured disclaimer.
func (s *DisclaimerService) Text() string {
	if s.config.CustomText != "" {
		return s.config.CustomText
	}
	if s.config.Level == DisclaimerFull {
		return disclaimerFullText
	}
	return disclaimerShortText
}

// Apply appends the disclaimer unless disabled or already present.
func (s *DisclaimerService) Apply(message string) string {
	if s == nil || !s.config.Enabled {
		return message
	}
	disclaimer := s.Text()
	if strings.Contains(message, disclaimer) {
		return message
	}
	return fmt.Sprintf("%s\n\n%s", strings.TrimSpace(message), disclaimer)
}
