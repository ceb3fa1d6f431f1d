package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct validates a request and returns a field to message map on
// failure. Field names drop the struct name, so nested fields read like
// "Purposes[0].PurposeID".
func ValidateStruct(request any) (map[string]string, bool) {
	err := Validate.Struct(request)
	if err == nil {
		return nil, true
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return map[string]string{"request": err.Error()}, false
	}
	fields := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		message := fe.Tag()
		if fe.Param() != "" {
			message += "=" + fe.Param()
		}
		fields[fieldName(fe.Namespace())] = message
	}
	return fields, false
}

func fieldName(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
