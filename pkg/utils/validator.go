package utils

import (
	"fmt"
	"regexp"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	codeRegex  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCode checks a status or action code: upper case letters, digits
// and underscores, starting with a letter
func ValidateCode(code string) error {
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("invalid code %q: use A-Z, 0-9 and _", code)
	}
	return nil
}
