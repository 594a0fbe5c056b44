package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/credential"
	"github.com/codeforge/gateway/internal/domain"
	gatewayuc "github.com/codeforge/gateway/internal/usecase/gateway"
	healthuc "github.com/codeforge/gateway/internal/usecase/health"
	"github.com/codeforge/gateway/internal/usecase/quota"
	tokenuc "github.com/codeforge/gateway/internal/usecase/token"
)

// CredentialHeader carries the caller's credential.
const CredentialHeader = "x-api-token"

const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// TokenIssuer mints tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, tierName, owner string) (tokenuc.Issued, error)
}

// Gateway runs and accounts requests made with a credential.
type Gateway interface {
	Validate(language, source string) error
	Execute(ctx context.Context, cred, language, source string) (gatewayuc.Outcome, error)
	Usage(ctx context.Context, cred string) (credential.Claims, quota.Summary, error)
	Revoke(ctx context.Context, cred string) error
	OwnerTokens(ctx context.Context, owner string) (quota.Summary, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API.
type Server struct {
	tokens        TokenIssuer
	gateway       Gateway
	health        HealthChecker
	logger        *zap.Logger
	metrics       http.Handler
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(tokens TokenIssuer, gateway Gateway, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		tokens:  tokens,
		gateway: gateway,
		health:  health,
		logger:  logger,
		metrics: promhttp.Handler(),
	}
	s.errorHandlers = []errorHandler{
		quotaExceededHandler,
		sentinelHandler(domain.ErrInvalidTier, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidOwner, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedLanguage, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrEmptySource, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidCredential, http.StatusUnauthorized, ErrorCodeUnauthorized),
		sentinelHandler(domain.ErrTokenNotFound, http.StatusUnauthorized, ErrorCodeUnauthorized),
		sentinelHandler(domain.ErrRunnerError, http.StatusInternalServerError, ErrorCodeRunnerError),
		sentinelHandler(domain.ErrStorageUnavailable, http.StatusInternalServerError, ErrorCodeStorageUnavailable),
	}
	return s
}

// Mount registers the routes on r. adminKeys guard the owner listing.
func (s *Server) Mount(r chi.Router, adminKeys []string) {
	r.Post("/token", s.IssueToken)
	r.Delete("/token", s.RevokeToken)
	r.Post("/execute", s.Execute)
	r.Get("/usage", s.GetUsage)
	r.With(BearerAuthMiddleware(adminKeys)).Get("/tokens", s.ListTokens)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// IssueToken handles POST /token.
func (s *Server) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	issued, err := s.tokens.Issue(r.Context(), req.Tier, req.Owner)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, IssueTokenResponse{
		Credential: issued.Credential,
		Tier:       issued.Tier.String(),
		DailyLimit: issued.DailyLimit,
		Message:    fmt.Sprintf("Limited to %d requests per day", issued.DailyLimit),
	})
}

// RevokeToken handles DELETE /token.
func (s *Server) RevokeToken(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(w, r)
	if !ok {
		return
	}
	if err := s.gateway.Revoke(r.Context(), cred); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Execute handles POST /execute.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.gateway.Validate(req.Language, req.SourceCode); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	cred, ok := credentialFrom(w, r)
	if !ok {
		return
	}

	out, err := s.gateway.Execute(r.Context(), cred, req.Language, req.SourceCode)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{
		Result:              out.Result,
		TokenType:           out.Tier.String(),
		RequestsUsedOnToken: out.Admission.RequestsUsedOnToken,
		AggregateToday:      out.Admission.AggregateToday,
		RequestsRemaining:   out.Admission.Remaining(),
		Ceiling:             out.Admission.Ceiling,
	})
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(w, r)
	if !ok {
		return
	}

	claims, sum, err := s.gateway.Usage(r.Context(), cred)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	agg := sum.Aggregate
	writeJSON(w, http.StatusOK, UsageResponse{
		Owner:             claims.Owner,
		TokenType:         claims.Tier.String(),
		AggregateToday:    agg.Used(),
		Ceiling:           agg.Ceiling(),
		RequestsRemaining: agg.Remaining(),
		ResetsAt:          agg.ResetsAt(),
	})
}

// ListTokens handles GET /tokens?owner=.
func (s *Server) ListTokens(w http.ResponseWriter, r *http.Request) {
	var owner string
	if err := runtime.BindQueryParameter("form", true, true, "owner", r.URL.Query(), &owner); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter owner")
		return
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "owner is required")
		return
	}

	sum, err := s.gateway.OwnerTokens(r.Context(), owner)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenListToDTO(owner, sum))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

func tokenListToDTO(owner string, sum quota.Summary) TokenListResponse {
	agg := sum.Aggregate
	items := make([]TokenItem, len(sum.Tokens))
	for i, tu := range sum.Tokens {
		items[i] = TokenItem{
			Credential:    tu.Token.Credential(),
			Tier:          tu.Token.Tier().String(),
			DailyLimit:    tu.Token.Tier().Ceiling(),
			RequestsToday: tu.Today,
			CreatedAt:     tu.Token.CreatedAt(),
			LastReset:     tu.Token.LastReset(),
		}
	}

	resp := TokenListResponse{
		Owner:             owner,
		Tokens:            items,
		AggregateToday:    agg.Used(),
		Ceiling:           agg.Ceiling(),
		RequestsRemaining: agg.Remaining(),
		LimitReached:      agg.Exhausted(),
		ResetsAt:          agg.ResetsAt(),
	}
	if resp.LimitReached {
		resp.Message = fmt.Sprintf("You've reached today's limit of %d requests across all your tokens.", agg.Ceiling())
	}
	return resp
}

func credentialFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	cred := r.Header.Get(CredentialHeader)
	if cred == "" {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "No token, authorization denied")
		return "", false
	}
	return cred, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err //nolint:wrapcheck // surfaced to the client as-is
	}
	return nil
}

// writeJSON encodes before writing the status, so a body that fails to
// encode yields a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"internal_error","message":"internal error"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidTier,
		domain.ErrInvalidOwner,
		domain.ErrUnsupportedLanguage,
		domain.ErrEmptySource,
		domain.ErrInvalidCredential,
		domain.ErrTokenNotFound,
		domain.ErrQuotaExceeded,
		domain.ErrRunnerError,
		domain.ErrStorageUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// quotaExceededHandler reports the figures a caller needs to wait or upgrade.
func quotaExceededHandler(w http.ResponseWriter, err error, _ string) bool {
	var qe *domain.QuotaExceededError
	if !errors.As(err, &qe) {
		return false
	}
	writeJSON(w, http.StatusTooManyRequests, QuotaExceededResponse{
		Code: ErrorCodeQuotaExceeded,
		Message: fmt.Sprintf(
			"Daily limit of %d requests exceeded across all your tokens. "+
				"Please upgrade your plan or wait for tomorrow.", qe.Ceiling),
		AggregateToday: qe.Aggregate,
		Ceiling:        qe.Ceiling,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			if errors.Is(err, domain.ErrRunnerError) || errors.Is(err, domain.ErrStorageUnavailable) {
				log.Error("request failed", zap.Error(err))
			} else {
				log.Warn("domain error", zap.Error(err))
			}
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
