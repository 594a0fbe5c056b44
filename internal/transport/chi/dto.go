package chi

import (
	"time"

	domexec "github.com/codeforge/gateway/internal/domain/execution"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeQuotaExceeded      ErrorCode = "quota_exceeded"
	ErrorCodeRunnerError        ErrorCode = "runner_error"
	ErrorCodeStorageUnavailable ErrorCode = "storage_unavailable"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// QuotaExceededResponse is the 429 body.
type QuotaExceededResponse struct {
	Code           ErrorCode `json:"code"`
	Message        string    `json:"message"`
	AggregateToday int64     `json:"aggregateToday"`
	Ceiling        int64     `json:"ceiling"`
}

// IssueTokenRequest is the POST /token body.
type IssueTokenRequest struct {
	Tier  string `json:"tier"`
	Owner string `json:"owner"`
}

// IssueTokenResponse is the POST /token reply.
type IssueTokenResponse struct {
	Credential string `json:"credential"`
	Tier       string `json:"tier"`
	DailyLimit int64  `json:"dailyLimit"`
	Message    string `json:"message"`
}

// ExecuteRequest is the POST /execute body.
type ExecuteRequest struct {
	Language   string `json:"language"`
	SourceCode string `json:"sourceCode"`
}

// ExecuteResponse is the POST /execute reply.
type ExecuteResponse struct {
	Result              domexec.Result `json:"result"`
	TokenType           string         `json:"tokenType"`
	RequestsUsedOnToken int64          `json:"requestsUsedOnToken"`
	AggregateToday      int64          `json:"aggregateToday"`
	RequestsRemaining   int64          `json:"requestsRemaining"`
	Ceiling             int64          `json:"ceiling"`
}

// UsageResponse is the GET /usage reply.
type UsageResponse struct {
	Owner             string    `json:"owner"`
	TokenType         string    `json:"tokenType"`
	AggregateToday    int64     `json:"aggregateToday"`
	Ceiling           int64     `json:"ceiling"`
	RequestsRemaining int64     `json:"requestsRemaining"`
	ResetsAt          time.Time `json:"resetsAt"`
}

// TokenItem is one token in the owner listing.
type TokenItem struct {
	Credential    string    `json:"credential"`
	Tier          string    `json:"tier"`
	DailyLimit    int64     `json:"dailyLimit"`
	RequestsToday int64     `json:"requestsToday"`
	CreatedAt     time.Time `json:"createdAt"`
	LastReset     time.Time `json:"lastReset"`
}

// TokenListResponse is the GET /tokens reply.
type TokenListResponse struct {
	Owner             string      `json:"owner"`
	Tokens            []TokenItem `json:"tokens"`
	AggregateToday    int64       `json:"aggregateToday"`
	Ceiling           int64       `json:"ceiling"`
	RequestsRemaining int64       `json:"requestsRemaining"`
	LimitReached      bool        `json:"limitReached"`
	Message           string      `json:"message,omitempty"`
	ResetsAt          time.Time   `json:"resetsAt"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
