// Package execution describes code submitted to a runner and what comes back.
package execution

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeforge/gateway/internal/domain"
)

// Language identifies a runner.
type Language string

// Supported languages.
const (
	Python     Language = "python"
	JavaScript Language = "javascript"
)

var supported = map[Language]struct{}{
	Python:     {},
	JavaScript: {},
}

// ParseLanguage resolves a language name (case-insensitive).
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return "", fmt.Errorf("%w: language is required", domain.ErrUnsupportedLanguage)
	}
	if _, ok := supported[l]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, s)
	}
	return l, nil
}

// Languages returns the supported set.
func Languages() []Language {
	return []Language{JavaScript, Python}
}

// Result is the normalized runner response. Error carries the program's own
// failure (compile error, uncaught exception), not a transport failure.
type Result struct {
	Output string          `json:"output"`
	Error  string          `json:"error,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// Failed reports whether the submitted program itself failed.
func (r Result) Failed() bool { return r.Error != "" }
