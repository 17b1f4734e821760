package validation

import (
	"fmt"
	"unicode"
)

// ValidatePassword проверяет минимальные требования к паролю.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("пароль должен быть не короче 8 символов")
	}
	if len(password) > 72 {
		// bcrypt ограничивает длину входа
		return fmt.Errorf("пароль слишком длинный")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return fmt.Errorf("пароль должен содержать буквы и цифры")
	}
	return nil
}
