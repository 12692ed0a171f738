package notice

import "errors"

var (
	ErrNotFound          = errors.New("notice not found")
	ErrIllegalTransition = errors.New("illegal notice transition")
	ErrNoticeClosed      = errors.New("notice is already closed")
	ErrWrongDiningMode   = errors.New("operation not allowed for dining mode")
	ErrValidation        = errors.New("invalid notice")
)

// ValidationError carries the messages shown to the person who triggered the action.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return ErrValidation.Error()
	}
	msg := ErrValidation.Error() + ": " + e.Messages[0]
	for _, m := range e.Messages[1:] {
		msg += "; " + m
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(messages ...string) error {
	return &ValidationError{Messages: messages}
}
