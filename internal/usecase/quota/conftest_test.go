package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeforge/gateway/internal/domain"
	"github.com/codeforge/gateway/internal/domain/tier"
	domtok "github.com/codeforge/gateway/internal/domain/token"
)

// memRepo is an in-memory Repository with the store's atomicity guarantees:
// Increment and ResetIfUnchanged are atomic per record, reads are snapshots.
type memRepo struct {
	mu      sync.Mutex
	records map[string]domtok.Token
	writes  int

	// hooks for fault injection
	getErr   error
	listErr  error
	incrErr  error
	onList   func()
	onCharge func()
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]domtok.Token)}
}

func (m *memRepo) put(tok domtok.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[tok.Credential()] = tok
}

func (m *memRepo) get(credential string) domtok.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[credential]
}

func (m *memRepo) Get(_ context.Context, credential string) (domtok.Token, error) {
	if m.getErr != nil {
		return domtok.Token{}, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.records[credential]
	if !ok {
		return domtok.Token{}, domain.ErrTokenNotFound
	}
	return tok, nil
}

func (m *memRepo) ListByOwner(_ context.Context, owner string) ([]domtok.Token, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	out := []domtok.Token{}
	for _, tok := range m.records {
		if tok.Owner() == owner {
			out = append(out, tok)
		}
	}
	m.mu.Unlock()
	if m.onList != nil {
		m.onList()
	}
	return out, nil
}

func (m *memRepo) Increment(_ context.Context, credential string) (int64, error) {
	if m.onCharge != nil {
		m.onCharge()
	}
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.records[credential]
	if !ok {
		return 0, domain.ErrTokenNotFound
	}
	n := tok.RequestCount() + 1
	m.records[credential] = domtok.Reconstruct(
		credential, tok.Tier(), tok.Owner(), tok.CreatedAt(), n, tok.LastReset())
	m.writes++
	return n, nil
}

func (m *memRepo) ResetIfUnchanged(_ context.Context, credential string, observed, now time.Time) (bool, error) {
	if m.onCharge != nil {
		m.onCharge()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.records[credential]
	if !ok {
		return false, domain.ErrTokenNotFound
	}
	if !tok.LastReset().Equal(observed) {
		return false, nil
	}
	m.records[credential] = domtok.Reconstruct(
		credential, tok.Tier(), tok.Owner(), tok.CreatedAt(), 1, now)
	m.writes++
	return true, nil
}

const testOwner = "dev@example.com"

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	return New(repo).WithClock(func() time.Time { return testNow }), repo
}

func record(credential string, tr tier.Tier, count int64, lastReset time.Time) domtok.Token {
	return domtok.Reconstruct(credential, tr, testOwner, lastReset, count, lastReset)
}
