// Package validation checks and normalizes account fields and tattoo post
// content.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLen = 12
	MaxPasswordLen = 128
	MinUsernameLen = 3
	MaxUsernameLen = 30
	MaxEmailLen    = 254
)

// FieldError names the account field that failed a check.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

func fieldErr(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
)

const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?~` + "`"

// passwordRules run in order; the first miss is reported.
var passwordRules = []struct {
	msg   string
	match func(rune) bool
}{
	{"password must contain at least one uppercase letter", unicode.IsUpper},
	{"password must contain at least one lowercase letter", unicode.IsLower},
	{"password must contain at least one digit", func(r rune) bool { return r >= '0' && r <= '9' }},
	{"password must contain at least one symbol such as !@#$%", func(r rune) bool { return strings.ContainsRune(passwordSymbols, r) }},
}

// ValidatePassword enforces length in bytes and one character of each class.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLen:
		return fieldErr("password", "password must be at least %d characters long", MinPasswordLen)
	case len(password) > MaxPasswordLen:
		return fieldErr("password", "password must not exceed %d characters", MaxPasswordLen)
	}
	for _, rule := range passwordRules {
		if !strings.ContainsFunc(password, rule.match) {
			return fieldErr("password", "%s", rule.msg)
		}
	}
	return nil
}

// ValidateUsername accepts ASCII letters, digits, '_' and '-', not leading
// or trailing with a separator.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case n < MinUsernameLen:
		return fieldErr("username", "username must be at least %d characters long", MinUsernameLen)
	case n > MaxUsernameLen:
		return fieldErr("username", "username must not exceed %d characters", MaxUsernameLen)
	case !usernameRe.MatchString(username):
		return fieldErr("username", "username can only contain letters, numbers, underscores, and hyphens")
	case strings.IndexAny(username[:1]+username[len(username)-1:], "_-") >= 0:
		return fieldErr("username", "username cannot start or end with underscore or hyphen")
	}
	return nil
}

// ValidateEmail is a shape check only; deliverability is not verified.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLen {
		return fieldErr("email", "email must not exceed %d characters", MaxEmailLen)
	}
	if !emailRe.MatchString(email) {
		return fieldErr("email", "invalid email format")
	}
	return nil
}
