// backend/src/security/validation/field_validator.go
package validation

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

var ErrValidationFailed = errors.New("validation failed")

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateValues checks every value against maxLength. Fields are checked in
// name order so the reported field is stable. A maxLength of zero or less
// disables the check.
func ValidateValues(values map[string]string, maxLength int) error {
	if maxLength <= 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ValidateStringMaxLength(values[name], maxLength, name); err != nil {
			return err
		}
	}
	return nil
}
