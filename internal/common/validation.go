package common

import (
	"fmt"
	"slices"
	"strings"

	"personasim/internal/errors"
)

var formatAliases = map[string]string{
	"md":  "markdown",
	"txt": "text",
}

// NormalizeOutputFormat lower-cases format, resolves the md and txt aliases
// and checks the result against the configured formats. An empty supported
// list allows everything.
func NormalizeOutputFormat(format string, supportedFormats []string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if alias, ok := formatAliases[f]; ok {
		f = alias
	}

	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, f) {
		return f, nil
	}

	return "", errors.NewInputError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s'. Supported formats: %v", format, supportedFormats), nil)
}
