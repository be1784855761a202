package content

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	rowValidator *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		rowValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return rowValidator
}

// InvalidDocumentError lists row-level problems found before a document is
// interpreted.
type InvalidDocumentError struct {
	Problems []string
}

func (e InvalidDocumentError) Error() string {
	return "invalid content document: " + strings.Join(e.Problems, "; ")
}

// Validate checks the row shapes of doc: required names, month bounds, and
// edibility classes. Cross-row consistency is the loader's job.
func Validate(doc Document) error {
	err := structValidator().Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate content: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return InvalidDocumentError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Document.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s %q must be one of [%s]", field, fe.Value(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s %v violates %s=%s", field, fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
