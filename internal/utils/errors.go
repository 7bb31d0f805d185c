package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Constructors below wrap them so callers can use errors.Is.
var (
	ErrMissingSlot       = errors.New("missing slot")
	ErrListNotFound      = errors.New("list not found")
	ErrRemoteCall        = errors.New("remote call failed")
	ErrFollowUpCancelled = errors.New("follow-up cancelled")
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// NewMissingSlotError reports a required utterance field that was not given.
func NewMissingSlotError(slot string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s", ErrMissingSlot, slot),
		Suggestion: fmt.Sprintf("Say the %s again, or pass it with --%s", strings.ToLower(slot), flagName(slot)),
	}
}

// NewListNotFoundError reports a spoken list name that resolves to no list.
func NewListNotFoundError(listName string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s", ErrListNotFound, listName),
		Suggestion: fmt.Sprintf("Create the list with 'grocat list create %s' or check 'grocat lists'", listName),
	}
}

// NewRemoteCallError reports a failed add/create/toggle against the remote service.
func NewRemoteCallError(action, item, list string, cause error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s %q on %q: %v", ErrRemoteCall, action, item, list, cause),
		Suggestion: getSmartSuggestion(cause.Error()),
	}
}

// NewFollowUpCancelledError reports a follow-up prompt that got no answer.
func NewFollowUpCancelledError(prompt string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s", ErrFollowUpCancelled, prompt),
		Suggestion: "Repeat the command and answer the question",
	}
}

// ErrServiceOffline returns an error when the list service is unreachable.
func ErrServiceOffline(name, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("service %s is offline: %s", name, reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// ErrCredentialsNotFound returns an error when credentials are missing.
func ErrCredentialsNotFound(service, user string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for %s user %s", service, user),
		Suggestion: "Run 'grocat credentials set' or export GROCAT_PASSWORD",
	}
}

// ErrAuthenticationFailed returns an error when login is rejected.
func ErrAuthenticationFailed(service string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("authentication failed for %s", service),
		Suggestion: "Verify your username and password",
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the service is reachable from this machine"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "deadline exceeded") {
		return "The service may be slow or unreachable. Try again later"
	}

	if strings.Contains(lowerReason, "authentication") || strings.Contains(lowerReason, "status 401") {
		return "Your session may have expired. Run the command again to log in"
	}

	return "Check your internet connection and try again"
}

func flagName(slot string) string {
	switch strings.ToLower(slot) {
	case "listname":
		return "list"
	case "food":
		return "item"
	default:
		return strings.ToLower(slot)
	}
}
