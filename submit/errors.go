package submit

import (
	"errors"
	"fmt"
)

// Rule names a validation rule. Rules are checked in declaration order.
type Rule string

const (
	// RuleAttachmentMissing: no attachment was supplied.
	RuleAttachmentMissing Rule = "attachment_missing"
	// RuleAttachmentType: the media type is not in an allowed prefix class.
	RuleAttachmentType Rule = "attachment_type"
	// RuleAttachmentSize: the attachment exceeds the size ceiling.
	RuleAttachmentSize Rule = "attachment_size"
	// RuleAttachmentUndecodable: the attachment bytes are not a decodable image.
	RuleAttachmentUndecodable Rule = "attachment_undecodable"
	// RuleFieldMissing: a required auxiliary field is absent or blank.
	RuleFieldMissing Rule = "field_missing"
	// RuleFieldPattern: an auxiliary field does not match its pattern.
	RuleFieldPattern Rule = "field_pattern"
)

// ValidationError reports the first violated rule. User-correctable; no
// network call is made when Build returns one.
type ValidationError struct {
	Rule Rule
	// Field is the auxiliary field name for field rules, empty otherwise.
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed (%s, field %q): %s", e.Rule, e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Message)
}

// IsValidationError returns true if err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// ValidationRule returns the violated rule if err is a *ValidationError.
func ValidationRule(err error) (Rule, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Rule, true
	}
	return "", false
}
