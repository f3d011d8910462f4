package provider

import (
	"errors"
	"fmt"
)

// Step identifies one hop of the authorization flow.
type Step int

const (
	StepInitiate Step = iota + 1
	StepAcceptLogin
	StepResumeToConsent
	StepAcceptConsent
	StepResumeToClient
	StepRedeemCode
)

func (s Step) String() string {
	switch s {
	case StepInitiate:
		return "initiate"
	case StepAcceptLogin:
		return "accept_login"
	case StepResumeToConsent:
		return "resume_to_consent"
	case StepAcceptConsent:
		return "accept_consent"
	case StepResumeToClient:
		return "resume_to_client"
	case StepRedeemCode:
		return "redeem_code"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	ErrUnexpectedResponse = errors.New("provider: unexpected response")
	ErrMissingChallenge   = errors.New("provider: missing challenge")
	ErrInvalidState       = errors.New("provider: invalid state")
	ErrMissingCode        = errors.New("provider: missing authorization code")
)

// StepError aborts a flow run. Its text may contain provider details and must
// not be shown to callers of the bridge.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func unexpected(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnexpectedResponse}, args...)...)
}
