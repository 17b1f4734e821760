package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	if len(email) > 254 {
		return fmt.Errorf("email слишком длинный")
	}
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("некорректный формат email")
	}
	return nil
}

// ValidateLength проверяет, что строка укладывается в границы по числу рун.
func ValidateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min {
		return fmt.Errorf("%s: минимум %d символов", field, min)
	}
	if max > 0 && n > max {
		return fmt.Errorf("%s: максимум %d символов", field, max)
	}
	return nil
}

// SanitizeString убирает управляющие символы и лишние пробелы.
func SanitizeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
