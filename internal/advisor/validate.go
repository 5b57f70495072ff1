package advisor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var adviceValidator = newAdviceValidator()

func newAdviceValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateAdvice проверяет совет по схеме и возвращает путь первого невалидного поля.
func ValidateAdvice(advice AdviceOutput) (string, error) {
	err := adviceValidator.Struct(advice)
	if err == nil {
		return "", nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		path := first.Namespace()
		if idx := strings.Index(path, "."); idx >= 0 {
			path = path[idx+1:]
		}
		return path, fmt.Errorf("failed %q constraint", first.Tag())
	}
	return "", err
}
