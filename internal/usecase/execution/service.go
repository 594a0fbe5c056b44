// Package execution routes submitted code to the runner for its language.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/domain"
	domexec "github.com/codeforge/gateway/internal/domain/execution"
	"github.com/codeforge/gateway/internal/logger"
	"github.com/codeforge/gateway/internal/metrics"
)

// Runner outcome labels.
const (
	statusOK           = "ok"
	statusProgramError = "program_error"
	statusError        = "error"
)

// payload keys runners use for output and failures, in precedence order
var (
	outputKeys = []string{"output", "result", "stdout", "body"}
	errorKeys  = []string{"error", "stderr", "errorMessage"}
)

// Service is the execution dispatcher. It does no retries.
type Service struct {
	runner Runner
}

// New creates an execution dispatcher.
func New(runner Runner) *Service {
	return &Service{runner: runner}
}

// Validate checks the request before anything is charged for it.
func (s *Service) Validate(language, source string) (domexec.Language, error) {
	lang, err := domexec.ParseLanguage(language)
	if err != nil {
		return "", err
	}
	if !s.runner.Supports(lang) {
		return "", fmt.Errorf("%w: no runner configured for %s", domain.ErrUnsupportedLanguage, lang)
	}
	if strings.TrimSpace(source) == "" {
		return "", domain.ErrEmptySource
	}
	return lang, nil
}

// Run validates, dispatches and normalizes the runner's reply.
func (s *Service) Run(ctx context.Context, language, source string) (domexec.Result, error) {
	lang, err := s.Validate(language, source)
	if err != nil {
		return domexec.Result{}, err
	}

	start := time.Now()
	raw, err := s.runner.Run(ctx, lang, source)
	metrics.RunnerDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RunnerRequestsTotal.WithLabelValues(string(lang), statusError).Inc()
		logger.FromContext(ctx).Error("runner failed", zap.String("language", string(lang)), zap.Error(err))
		if !errors.Is(err, domain.ErrRunnerError) {
			err = fmt.Errorf("%w: %w", domain.ErrRunnerError, err)
		}
		return domexec.Result{}, err
	}

	res := Normalize(raw)
	status := statusOK
	if res.Failed() {
		status = statusProgramError
	}
	metrics.RunnerRequestsTotal.WithLabelValues(string(lang), status).Inc()
	return res, nil
}

// Normalize decodes a runner payload into output and error text.
// A JSON string is taken as output. Objects are searched for the known keys;
// any other JSON value is returned verbatim as output.
func Normalize(raw json.RawMessage) domexec.Result {
	res := domexec.Result{Raw: raw}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return res
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		res.Output = s
		return res
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		res.Output = string(trimmed)
		return res
	}
	res.Output = firstText(obj, outputKeys)
	res.Error = firstText(obj, errorKeys)
	if res.Output == "" && res.Error == "" {
		res.Output = string(trimmed)
	}
	return res
}

func firstText(obj map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		if t := text(v); t != "" {
			return t
		}
	}
	return ""
}

func text(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return ""
	}
	return string(v)
}
