// Package syncer aligns the denylist and allowlist of several profiles on their
// majority state. Work is split into Analyze, which only reads, and Execute,
// which applies the planned operations one at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nxsync/nxsync/pkg/consensus"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/targets"
)

const (
	DefaultDelay      = 200 * time.Millisecond
	DefaultRetryDelay = 2 * time.Second
	DefaultMaxRetries = 3
)

// Target selects which lists a sync touches.
type Target string

const (
	TargetDenylist  Target = "denylist"
	TargetAllowlist Target = "allowlist"
	TargetBoth      Target = "both"
)

func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case TargetDenylist:
		return TargetDenylist, nil
	case TargetAllowlist:
		return TargetAllowlist, nil
	case TargetBoth, "":
		return TargetBoth, nil
	default:
		return "", fmt.Errorf("invalid sync target %q (expected denylist, allowlist or both)", s)
	}
}

// ListTypes returns the lists covered by t in processing order.
func (t Target) ListTypes() []nextdns.ListType {
	switch t {
	case TargetDenylist:
		return []nextdns.ListType{nextdns.Denylist}
	case TargetAllowlist:
		return []nextdns.ListType{nextdns.Allowlist}
	default:
		return nextdns.ListTypes
	}
}

// Options configures Analyze.
type Options struct {
	// ProfileIDs restricts the sync to these profiles. Empty means every profile.
	ProfileIDs []string
	// Delay is the pause between two list fetches.
	Delay time.Duration
	Log   targets.Logger
}

// ListAnalysis is the consensus state of one list type.
type ListAnalysis struct {
	ListType  nextdns.ListType                 `json:"listType" yaml:"listType"`
	Snapshots map[string][]nextdns.DomainEntry `json:"snapshots" yaml:"snapshots"`
	Canonical consensus.Canonical              `json:"canonical" yaml:"canonical"`
	Plan      consensus.Plan                   `json:"plan" yaml:"plan"`
}

// Analysis is what Execute consumes. It is never written back to the vendor.
type Analysis struct {
	Profiles []nextdns.Profile                  `json:"profiles" yaml:"profiles"`
	Lists    map[nextdns.ListType]*ListAnalysis `json:"lists" yaml:"lists"`
	Delay    time.Duration                      `json:"-" yaml:"-"`
}

// Order returns the profile ids in the order operations are planned for.
func (a *Analysis) Order() []string { return targets.IDs(a.Profiles) }

// Operations returns the planned operations for t, denylist first.
func (a *Analysis) Operations(t Target) []consensus.Operation {
	var ops []consensus.Operation
	for _, lt := range t.ListTypes() {
		if la, ok := a.Lists[lt]; ok {
			ops = append(ops, la.Plan.All()...)
		}
	}
	return ops
}

// EstimatedDuration is a display hint: one throttle delay per operation.
func (a *Analysis) EstimatedDuration(t Target) time.Duration {
	return time.Duration(len(a.Operations(t))) * a.Delay
}

// Analyze resolves the profiles, fetches both lists of each one sequentially and
// plans the operations. At least two profiles are required.
func Analyze(ctx context.Context, api nextdns.API, opts Options) (*Analysis, error) {
	log := targets.LoggerOrNop(opts.Log)

	profiles, err := targets.Resolve(ctx, api, opts.ProfileIDs, 2)
	if err != nil {
		return nil, err
	}
	if missing := targets.Missing(opts.ProfileIDs, profiles); len(missing) > 0 {
		log.Warnf("Ignoring unknown profiles: %s", strings.Join(missing, ", "))
	}

	a := &Analysis{
		Profiles: profiles,
		Lists:    make(map[nextdns.ListType]*ListAnalysis, len(nextdns.ListTypes)),
		Delay:    opts.Delay,
	}
	for _, lt := range nextdns.ListTypes {
		a.Lists[lt] = &ListAnalysis{ListType: lt, Snapshots: make(map[string][]nextdns.DomainEntry, len(profiles))}
	}

	first := true
	for _, p := range profiles {
		for _, lt := range nextdns.ListTypes {
			if !first {
				if err := targets.Throttle(ctx, opts.Delay); err != nil {
					return nil, err
				}
			}
			first = false

			log.Debugf("Fetching %s of %s", lt, p.DisplayName())
			entries, err := api.ListDomainEntries(ctx, p.ID, lt)
			if err != nil {
				return nil, fmt.Errorf("fetching %s of profile %s: %w", lt, p.ID, err)
			}
			a.Lists[lt].Snapshots[p.ID] = entries
		}
	}

	order := a.Order()
	for _, lt := range nextdns.ListTypes {
		la := a.Lists[lt]
		la.Canonical = consensus.Canonicalize(la.Snapshots)
		la.Plan = consensus.PlanOperations(la.Snapshots, order, la.Canonical, lt)
		log.Infof("%s: %d domains, %d to add, %d to update", lt, len(la.Canonical), len(la.Plan.ToAdd), len(la.Plan.ToUpdate))
	}
	return a, nil
}

// Outcome classifies how one operation ended.
type Outcome string

const (
	// OutcomeSuccess means the vendor accepted the change.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure means the vendor rejected it.
	OutcomeFailure Outcome = "failure"
	// OutcomeError means the call never produced a vendor answer.
	OutcomeError Outcome = "error"
)

type OperationResult struct {
	Operation consensus.Operation `json:"operation" yaml:"operation"`
	Outcome   Outcome             `json:"outcome" yaml:"outcome"`
	Attempts  int                 `json:"attempts" yaml:"attempts"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
}

// Listener is told about every finished operation, in order.
type Listener interface {
	OperationDone(res OperationResult, completed, total int)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(res OperationResult, completed, total int)

func (f ListenerFunc) OperationDone(res OperationResult, completed, total int) {
	f(res, completed, total)
}

// Config configures Execute.
type Config struct {
	Target     Target
	DryRun     bool
	Delay      time.Duration
	RetryDelay time.Duration
	MaxRetries int
	Listener   Listener
	Log        targets.Logger
}

type Summary struct {
	AddSuccess    int               `json:"addSuccess" yaml:"addSuccess"`
	AddFail       int               `json:"addFail" yaml:"addFail"`
	UpdateSuccess int               `json:"updateSuccess" yaml:"updateSuccess"`
	UpdateFail    int               `json:"updateFail" yaml:"updateFail"`
	DryRun        bool              `json:"dryRun" yaml:"dryRun"`
	Canceled      bool              `json:"canceled,omitempty" yaml:"canceled,omitempty"`
	Results       []OperationResult `json:"results" yaml:"results"`
}

func (s Summary) Failed() int { return s.AddFail + s.UpdateFail }

func (s *Summary) record(res OperationResult) {
	s.Results = append(s.Results, res)
	ok := res.Outcome == OutcomeSuccess
	switch {
	case res.Operation.Kind == consensus.KindAdd && ok:
		s.AddSuccess++
	case res.Operation.Kind == consensus.KindAdd:
		s.AddFail++
	case ok:
		s.UpdateSuccess++
	default:
		s.UpdateFail++
	}
}

// Execute applies the planned operations for cfg.Target one by one. A failed
// operation is recorded and the loop moves on. Rate-limited calls are retried
// after RetryDelay up to MaxRetries times. A dry run makes no calls at all.
func Execute(ctx context.Context, api nextdns.API, a *Analysis, cfg Config) Summary {
	log := targets.LoggerOrNop(cfg.Log)
	summary := Summary{DryRun: cfg.DryRun, Results: []OperationResult{}}
	if cfg.DryRun || a == nil {
		return summary
	}

	ops := a.Operations(cfg.Target)
	for i, op := range ops {
		if i > 0 {
			if err := targets.Throttle(ctx, cfg.Delay); err != nil {
				summary.Canceled = true
				break
			}
		} else if ctx.Err() != nil {
			summary.Canceled = true
			break
		}

		res := apply(ctx, api, op, cfg, log)
		summary.record(res)
		if res.Outcome != OutcomeSuccess {
			log.Warnf("%s: %s", op, res.Error)
		} else {
			log.Debugf("%s: ok", op)
		}
		if cfg.Listener != nil {
			cfg.Listener.OperationDone(res, i+1, len(ops))
		}
	}
	return summary
}

func apply(ctx context.Context, api nextdns.API, op consensus.Operation, cfg Config, log targets.Logger) OperationResult {
	res := OperationResult{Operation: op}
	var err error
	for {
		res.Attempts++
		if op.Kind == consensus.KindAdd {
			err = api.AddDomainEntry(ctx, op.ProfileID, op.ListType, op.Domain, op.TargetActive)
		} else {
			err = api.UpdateDomainEntryStatus(ctx, op.ProfileID, op.ListType, op.Domain, op.TargetActive)
		}
		if err == nil || !nextdns.IsRateLimited(err) || res.Attempts > cfg.MaxRetries {
			break
		}
		log.Warnf("Rate limited on %s, retrying in %s (%d/%d)", op, cfg.RetryDelay, res.Attempts, cfg.MaxRetries)
		if werr := targets.Throttle(ctx, cfg.RetryDelay); werr != nil {
			break
		}
	}

	var apiErr *nextdns.APIError
	switch {
	case err == nil:
		res.Outcome = OutcomeSuccess
	case errors.As(err, &apiErr):
		res.Outcome = OutcomeFailure
		res.Error = err.Error()
	default:
		res.Outcome = OutcomeError
		res.Error = err.Error()
	}
	return res
}
