package services

import "context"

const (
	ChoiceOpenSettings = "Open Settings"
	ChoiceNotNow       = "Not now"
	ChoiceCall         = "Call"
	ChoiceCancel       = "Cancel"
)

type PromptOptions struct {
	Title   string
	Message string
	Choices []string
}

// UserPrompt asks the user to pick one of the offered choices. It returns the
// chosen label, or an error when the prompt could not be shown or answered.
type UserPrompt interface {
	Ask(ctx context.Context, options PromptOptions) (string, error)
}
