package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeforge/gateway/internal/domain"
	"github.com/codeforge/gateway/internal/domain/tier"
)

func TestAdmit_FreeTierTenThenReject(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("free-1", tier.Free, 0, testNow))
	ctx := context.Background()

	for i := int64(1); i <= 10; i++ {
		adm, err := svc.AdmitAndRecord(ctx, "free-1", tier.Free, testOwner)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if adm.RequestsUsedOnToken != i || adm.AggregateToday != i {
			t.Errorf("request %d: used=%d aggregate=%d", i, adm.RequestsUsedOnToken, adm.AggregateToday)
		}
		if want := 10 - i; adm.Remaining() != want {
			t.Errorf("request %d: remaining=%d, want %d", i, adm.Remaining(), want)
		}
	}

	_, err := svc.AdmitAndRecord(ctx, "free-1", tier.Free, testOwner)
	var qe *domain.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Aggregate != 10 || qe.Ceiling != 10 {
		t.Errorf("unexpected figures: %+v", qe)
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Error("expected error to wrap ErrQuotaExceeded")
	}
	tok := repo.get("free-1")
	if tok.RequestCount() != 10 {
		t.Errorf("requestCount = %d, want 10", tok.RequestCount())
	}
}

func TestAdmit_CrossTierUsesHighestCeiling(t *testing.T) {
	tests := []struct {
		name      string
		charge    string
		wantCount int64
	}{
		{"on free token", "free-1", 10},
		{"on business token", "biz-1", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestService(t)
			repo.put(record("free-1", tier.Free, 9, testNow))
			repo.put(record("biz-1", tier.Business, 0, testNow))

			adm, err := svc.AdmitAndRecord(context.Background(), tc.charge, tier.Free, testOwner)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adm.Ceiling != 10000 {
				t.Errorf("ceiling = %d, want 10000", adm.Ceiling)
			}
			if adm.AggregateToday != 10 {
				t.Errorf("aggregate = %d, want 10", adm.AggregateToday)
			}
			if adm.RequestsUsedOnToken != tc.wantCount {
				t.Errorf("own count = %d, want %d", adm.RequestsUsedOnToken, tc.wantCount)
			}
		})
	}
}

func TestAdmit_AggregateSpansTokens(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("a", tier.Free, 6, testNow))
	repo.put(record("b", tier.Free, 4, testNow))

	_, err := svc.AdmitAndRecord(context.Background(), "b", tier.Free, testOwner)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if repo.writes != 0 {
		t.Errorf("rejection mutated %d records", repo.writes)
	}
}

func TestAdmit_RolloverResetsStaleToken(t *testing.T) {
	svc, repo := newTestService(t)
	yesterday := testNow.Add(-24 * time.Hour)
	repo.put(record("free-1", tier.Free, 7, yesterday))

	adm, err := svc.AdmitAndRecord(context.Background(), "free-1", tier.Free, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adm.RequestsUsedOnToken != 1 || adm.AggregateToday != 1 {
		t.Errorf("used=%d aggregate=%d, want 1/1", adm.RequestsUsedOnToken, adm.AggregateToday)
	}
	tok := repo.get("free-1")
	if tok.RequestCount() != 1 || !tok.LastReset().Equal(testNow) {
		t.Errorf("record not reset: count=%d lastReset=%v", tok.RequestCount(), tok.LastReset())
	}
}

func TestAdmit_StaleSiblingContributesZero(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("old", tier.Free, 10, testNow.Add(-48*time.Hour)))
	repo.put(record("cur", tier.Free, 2, testNow))

	adm, err := svc.AdmitAndRecord(context.Background(), "cur", tier.Free, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adm.AggregateToday != 3 {
		t.Errorf("aggregate = %d, want 3", adm.AggregateToday)
	}
	old := repo.get("old")
	if old.RequestCount() != 10 {
		t.Error("stale sibling must not be mutated")
	}
}

func TestAdmit_DayBoundaryIsUTC(t *testing.T) {
	repo := newMemRepo()
	// 23:59 UTC on the 13th vs 00:01 UTC on the 14th
	repo.put(record("free-1", tier.Free, 10, time.Date(2026, 3, 13, 23, 59, 0, 0, time.UTC)))
	local := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2026, 3, 13, 19, 1, 0, 0, local) // 00:01 UTC on the 14th
	svc := New(repo).WithClock(func() time.Time { return now })

	adm, err := svc.AdmitAndRecord(context.Background(), "free-1", tier.Free, testOwner)
	if err != nil {
		t.Fatalf("expected rollover to admit, got %v", err)
	}
	if adm.RequestsUsedOnToken != 1 {
		t.Errorf("own count = %d, want 1", adm.RequestsUsedOnToken)
	}
}

func TestAdmit_RolloverIdempotentWhenResetLost(t *testing.T) {
	svc, repo := newTestService(t)
	yesterday := testNow.Add(-24 * time.Hour)
	repo.put(record("free-1", tier.Free, 7, yesterday))

	// another request rolls the token over between our read and our write
	raced := false
	repo.onCharge = func() {
		if raced {
			return
		}
		raced = true
		repo.put(record("free-1", tier.Free, 1, testNow.Add(-time.Second)))
	}

	adm, err := svc.AdmitAndRecord(context.Background(), "free-1", tier.Free, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adm.RequestsUsedOnToken != 2 {
		t.Errorf("own count = %d, want 2 (no double reset)", adm.RequestsUsedOnToken)
	}
	tok := repo.get("free-1")
	if tok.RequestCount() != 2 {
		t.Errorf("stored count = %d, want 2", tok.RequestCount())
	}
}

func TestAdmit_CountNeverDecreasesWithinDay(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("biz-1", tier.Business, 0, testNow))
	ctx := context.Background()

	var last int64
	for i := 0; i < 25; i++ {
		adm, err := svc.AdmitAndRecord(ctx, "biz-1", tier.Business, testOwner)
		if err != nil {
			t.Fatal(err)
		}
		if adm.RequestsUsedOnToken <= last {
			t.Fatalf("count went from %d to %d", last, adm.RequestsUsedOnToken)
		}
		last = adm.RequestsUsedOnToken
	}
}

func TestAdmit_ConcurrentSameTokenNoLostIncrements(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("biz-1", tier.Business, 0, testNow))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AdmitAndRecord(context.Background(), "biz-1", tier.Business, testOwner); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	tok := repo.get("biz-1")
	if tok.RequestCount() != n {
		t.Errorf("count = %d, want %d", tok.RequestCount(), n)
	}
}

// The limit is soft across tokens: two requests on different tokens that both
// read the aggregate before either charges are both admitted at the boundary.
func TestAdmit_SoftLimitAcrossTokens(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("a", tier.Free, 5, testNow))
	repo.put(record("b", tier.Free, 4, testNow))

	var (
		arrived sync.WaitGroup
		release = make(chan struct{})
	)
	arrived.Add(2)
	repo.onList = func() {
		arrived.Done()
		<-release
	}
	go func() {
		arrived.Wait()
		close(release)
	}()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, cred := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, cred string) {
			defer wg.Done()
			_, errs[i] = svc.AdmitAndRecord(context.Background(), cred, tier.Free, testOwner)
		}(i, cred)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: expected soft-limit admit, got %v", i, err)
		}
	}
	a, b := repo.get("a"), repo.get("b")
	if total := a.RequestCount() + b.RequestCount(); total != 11 {
		t.Errorf("aggregate = %d, want 11 (one over the ceiling)", total)
	}
}

func TestAdmit_UnknownToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AdmitAndRecord(context.Background(), "nope", tier.Free, testOwner)
	if !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestAdmit_StorageUnavailable(t *testing.T) {
	cause := domain.Unavailable(errors.New("i/o timeout"))
	tests := []struct {
		name   string
		inject func(r *memRepo)
	}{
		{"get", func(r *memRepo) { r.getErr = cause }},
		{"list", func(r *memRepo) { r.listErr = cause }},
		{"increment", func(r *memRepo) { r.incrErr = cause }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestService(t)
			repo.put(record("free-1", tier.Free, 1, testNow))
			tc.inject(repo)

			_, err := svc.AdmitAndRecord(context.Background(), "free-1", tier.Free, testOwner)
			if !errors.Is(err, domain.ErrStorageUnavailable) {
				t.Fatalf("expected ErrStorageUnavailable, got %v", err)
			}
		})
	}
}

func TestAdmit_OwnTokenMissingFromIndex(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("free-1", tier.Free, 3, testNow))

	// the owner index returns nothing for this owner; the own record still counts
	adm, err := svc.AdmitAndRecord(context.Background(), "free-1", tier.Free, "someone@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adm.AggregateToday != 4 || adm.Ceiling != 10 {
		t.Errorf("aggregate=%d ceiling=%d, want 4/10", adm.AggregateToday, adm.Ceiling)
	}
}

func TestSummary(t *testing.T) {
	svc, repo := newTestService(t)
	repo.put(record("a", tier.Hobby, 40, testNow))
	repo.put(record("b", tier.Free, 9, testNow.Add(-24*time.Hour)))

	sum, err := svc.Summary(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Aggregate.Used() != 40 || sum.Aggregate.Ceiling() != 500 {
		t.Errorf("used=%d ceiling=%d", sum.Aggregate.Used(), sum.Aggregate.Ceiling())
	}
	if sum.Aggregate.Remaining() != 460 {
		t.Errorf("remaining = %d", sum.Aggregate.Remaining())
	}
	for _, tu := range sum.Tokens {
		if tu.Token.Credential() == "b" && tu.Today != 0 {
			t.Errorf("stale token today = %d, want 0", tu.Today)
		}
	}
	if repo.writes != 0 {
		t.Error("summary must not mutate records")
	}
}

func TestSummary_NoTokensUsesLowestCeiling(t *testing.T) {
	svc, _ := newTestService(t)
	sum, err := svc.Summary(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Aggregate.Ceiling() != tier.Free.Ceiling() || sum.Aggregate.Used() != 0 {
		t.Errorf("unexpected aggregate: used=%d ceiling=%d", sum.Aggregate.Used(), sum.Aggregate.Ceiling())
	}
}
