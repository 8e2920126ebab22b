package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	codeRegex  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_\-]{0,15}$`)
	ctrlRegex  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCode validates a tenant or cost center code used in document numbers:
// upper-case letters, digits, dash and underscore, at most 16 characters
func ValidateCode(code string) error {
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("invalid code %q: use A-Z, 0-9, '-' or '_' (max 16)", code)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(ctrlRegex.ReplaceAllString(s, ""))
}
