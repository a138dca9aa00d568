package booking

import (
	"errors"
	"strings"
)

// Field names the validator keys its errors by. They match the wire names
// the page edits so a corrective edit can clear exactly one error.
const (
	FieldConsultationMode = "consultationMode"
	FieldProblem          = "problem"
)

const (
	ModeOnline   = "online"
	ModeInPerson = "in-person"
)

// Problem description bounds. The page enforces the upper bound at the input
// as well; the validator is the authoritative check.
const (
	ProblemMinLength = 50
	ProblemMaxLength = 500
)

var (
	ErrRequired    = errors.New("this field is required")
	ErrInvalidMode = errors.New("consultation mode must be online or in-person")
	ErrTooShort    = errors.New("problem description must be at least 50 characters")
	ErrTooLong     = errors.New("problem description must be at most 500 characters")
)

// FieldErrors maps a field name to its validation failure.
type FieldErrors map[string]error

// Messages renders the map in wire form.
func (fe FieldErrors) Messages() map[string]string {
	if len(fe) == 0 {
		return nil
	}
	out := make(map[string]string, len(fe))
	for field, err := range fe {
		out[field] = err.Error()
	}
	return out
}

// ValidateMode checks the consultation-mode selection. Validation is
// field-local: it never looks at other draft fields.
func ValidateMode(mode string) error {
	switch mode {
	case "":
		return ErrRequired
	case ModeOnline, ModeInPerson:
		return nil
	default:
		return ErrInvalidMode
	}
}

// ValidateProblem checks the free-text problem description against the
// trimmed length bounds.
func ValidateProblem(problem string) error {
	n := len(strings.TrimSpace(problem))
	switch {
	case n < ProblemMinLength:
		return ErrTooShort
	case n > ProblemMaxLength:
		return ErrTooLong
	default:
		return nil
	}
}

// Validate runs every field validator and collects failures per field.
func Validate(mode, problem string) FieldErrors {
	errs := FieldErrors{}
	if err := ValidateMode(mode); err != nil {
		errs[FieldConsultationMode] = err
	}
	if err := ValidateProblem(problem); err != nil {
		errs[FieldProblem] = err
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
