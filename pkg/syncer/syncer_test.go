package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nxsync/nxsync/internal/fakeapi"
	"github.com/nxsync/nxsync/pkg/consensus"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func e(id string, active bool) nextdns.DomainEntry {
	return nextdns.DomainEntry{ID: id, Active: active}
}

// scenario seeds the three-profile case: P3 needs an update and an add, P1 and P2 an add each.
func scenario() *fakeapi.Fake {
	f := fakeapi.New()
	f.AddProfile(nextdns.Profile{ID: "P1", Name: "One"}, "").SetList("P1", nextdns.Denylist, e("a.com", true), e("b.com", false))
	f.AddProfile(nextdns.Profile{ID: "P2", Name: "Two"}, "").SetList("P2", nextdns.Denylist, e("a.com", true), e("b.com", false))
	f.AddProfile(nextdns.Profile{ID: "P3", Name: "Three"}, "").SetList("P3", nextdns.Denylist, e("a.com", false), e("c.com", true))
	return f
}

func analyze(t *testing.T, f *fakeapi.Fake) *Analysis {
	t.Helper()
	a, err := Analyze(context.Background(), f, Options{})
	require.NoError(t, err)
	return a
}

func TestParseTarget(t *testing.T) {
	for in, want := range map[string]Target{"denylist": TargetDenylist, "ALLOWLIST": TargetAllowlist, "both": TargetBoth, "": TargetBoth} {
		got, err := ParseTarget(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTarget("rewrites")
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	f := scenario()
	a := analyze(t, f)

	assert.Equal(t, []string{"P1", "P2", "P3"}, a.Order())
	assert.Equal(t, consensus.Canonical{"a.com": true, "b.com": false, "c.com": true}, a.Lists[nextdns.Denylist].Canonical)
	assert.Equal(t, 4, a.Lists[nextdns.Denylist].Plan.Len())
	assert.Equal(t, 0, a.Lists[nextdns.Allowlist].Plan.Len())
	assert.Len(t, a.Operations(TargetBoth), 4)
	assert.Empty(t, a.Operations(TargetAllowlist))
	assert.Equal(t, 6, f.CallCount("ListDomainEntries"))
	assert.Zero(t, f.MutatingCalls())
}

func TestEstimatedDuration(t *testing.T) {
	a, err := Analyze(context.Background(), scenario(), Options{Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 4*time.Millisecond, a.EstimatedDuration(TargetDenylist))
}

func TestAnalyzePreconditions(t *testing.T) {
	ctx := context.Background()

	_, err := Analyze(ctx, scenario(), Options{ProfileIDs: []string{"P1"}})
	assert.ErrorIs(t, err, targets.ErrInsufficientProfiles)

	_, err = Analyze(ctx, scenario(), Options{ProfileIDs: []string{"X", "Y"}})
	assert.ErrorIs(t, err, targets.ErrProfilesNotFound)

	f := scenario().Fail("ListDomainEntries", "P2", errors.New("connection reset"), -1)
	_, err = Analyze(ctx, f, Options{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestDryRunMakesNoCalls(t *testing.T) {
	f := scenario()
	a := analyze(t, f)
	before := len(f.Calls())

	s := Execute(context.Background(), f, a, Config{Target: TargetBoth, DryRun: true})
	assert.True(t, s.DryRun)
	assert.Equal(t, Summary{DryRun: true, Results: []OperationResult{}}, s)
	assert.Len(t, f.Calls(), before)
}

func TestExecuteReachesConsensus(t *testing.T) {
	f := scenario()
	a := analyze(t, f)

	var progress []int
	s := Execute(context.Background(), f, a, Config{
		Target: TargetBoth,
		Listener: ListenerFunc(func(res OperationResult, completed, total int) {
			assert.Equal(t, 4, total)
			progress = append(progress, completed)
		}),
	})
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Equal(t, 3, s.AddSuccess)
	assert.Equal(t, 1, s.UpdateSuccess)
	assert.Zero(t, s.Failed())

	again := analyze(t, f)
	assert.Empty(t, again.Operations(TargetBoth))
}

func TestRetryOnRateLimit(t *testing.T) {
	f := scenario()
	a := analyze(t, f)
	f.Fail("UpdateDomainEntryStatus", "P3", fakeapi.RateLimited("PATCH", "/profiles/P3/denylist/a.com"), 2)

	s := Execute(context.Background(), f, a, Config{Target: TargetDenylist, MaxRetries: 3, RetryDelay: time.Millisecond})
	assert.Equal(t, 1, s.UpdateSuccess)
	assert.Zero(t, s.Failed())
	assert.Equal(t, 3, s.Results[3].Attempts)
	assert.Equal(t, 3, f.CallCount("UpdateDomainEntryStatus"))
}

func TestRetryCeiling(t *testing.T) {
	f := scenario()
	a := analyze(t, f)
	f.Fail("UpdateDomainEntryStatus", "", fakeapi.RateLimited("PATCH", "/x"), -1)

	s := Execute(context.Background(), f, a, Config{Target: TargetDenylist, MaxRetries: 2, RetryDelay: time.Millisecond})
	assert.Equal(t, 1, s.UpdateFail)
	assert.Equal(t, OutcomeFailure, s.Results[3].Outcome)
	assert.Equal(t, 3, f.CallCount("UpdateDomainEntryStatus"))
}

func TestContinuesAfterFailure(t *testing.T) {
	f := scenario()
	a := analyze(t, f)
	f.Fail("AddDomainEntry", "P3", errors.New("dial tcp: timeout"), -1)
	f.Fail("AddDomainEntry", "P1", fakeapi.NotFound("POST", "/profiles/P1/denylist"), 1)

	s := Execute(context.Background(), f, a, Config{Target: TargetBoth, MaxRetries: 3, RetryDelay: time.Millisecond})
	assert.Equal(t, 1, s.AddSuccess)
	assert.Equal(t, 2, s.AddFail)
	assert.Equal(t, 1, s.UpdateSuccess)
	assert.Equal(t, 2, s.Failed())
	require.Len(t, s.Results, 4)
	assert.Equal(t, OutcomeError, s.Results[0].Outcome)
	assert.Equal(t, OutcomeFailure, s.Results[1].Outcome)
	assert.Equal(t, 1, s.Results[0].Attempts)
}

func TestExecuteStopsWhenCanceled(t *testing.T) {
	f := scenario()
	a := analyze(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := Execute(ctx, f, a, Config{Target: TargetBoth})
	assert.True(t, s.Canceled)
	assert.Zero(t, f.MutatingCalls())
}
