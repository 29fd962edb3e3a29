// Package validation provides user code validation utilities for the
// device authorization grant.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// User code format settings
const (
	GroupSize  = 4 // Characters per group
	GroupCount = 2 // Groups separated by a hyphen
	CodeLength = GroupSize * GroupCount
)

// Charset contains the characters allowed in user codes. Vowels are
// excluded to avoid forming words; 0/O and 1/I are excluded because they
// are easily confused when transcribed from a TV or terminal screen.
const Charset = "BCDFGHJKLMNPQRSTVWXZ23456789"

var codeRegex = regexp.MustCompile(fmt.Sprintf("^[%s]{%d}-[%s]{%d}$",
	Charset, GroupSize, Charset, GroupSize))

// Error describes why a user code failed validation.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid user code %q: %s", e.Code, e.Message)
}

// ValidateUserCode checks that a user code is well formed in display
// format: two groups of four characters from Charset joined by a hyphen.
// Case and surrounding whitespace are normalized first, so "wxyz-2345"
// and " WXYZ-2345 " both pass.
func ValidateUserCode(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	base := strings.ReplaceAll(code, "-", "")
	if len(base) != CodeLength {
		return &Error{
			Code:    code,
			Message: fmt.Sprintf("length must be %d characters", CodeLength),
		}
	}

	if !codeRegex.MatchString(code) {
		return &Error{
			Code:    code,
			Message: "code must be in format XXXX-XXXX using only allowed characters",
		}
	}

	return nil
}

// NormalizeCode converts a user code to its canonical lookup form:
// uppercase with all whitespace and separators removed.
func NormalizeCode(code string) string {
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.Join(strings.Fields(code), "")
}

// FormatCode converts a normalized code back to display format.
func FormatCode(code string) string {
	if len(code) != CodeLength {
		return code
	}
	return code[:GroupSize] + "-" + code[GroupSize:]
}
