package config

import "fmt"

// Error is a configuration error carrying the section and option it refers
// to.
type Error struct {
	Section string
	Option  string
	Message string
}

func (e *Error) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("option '%s' in section '%s': %s", e.Option, e.Section, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("section '%s': %s", e.Section, e.Message)
	}
	return e.Message
}

// ErrMissingOption reports a required option that is not set.
func ErrMissingOption(section, option string) *Error {
	return &Error{Section: section, Option: option, Message: "must be specified"}
}

// ErrMissingSection reports a required section that does not exist.
func ErrMissingSection(section string) *Error {
	return &Error{Section: section, Message: "section not found"}
}

// ErrInvalidValue reports a value that does not parse as expected.
func ErrInvalidValue(section, option, value, expected string) *Error {
	return &Error{
		Section: section,
		Option:  option,
		Message: fmt.Sprintf("invalid value '%s', expected %s", value, expected),
	}
}

// ErrInvalidChoice reports a value outside the allowed choices.
func ErrInvalidChoice(section, option, value string, choices []string) *Error {
	return &Error{
		Section: section,
		Option:  option,
		Message: fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices),
	}
}
