// Package targets resolves which profiles a multi-profile operation runs against
// and holds the small pieces every such operation shares: a logger contract and
// the throttle between sequential remote calls.
package targets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nxsync/nxsync/pkg/nextdns"
)

var (
	// ErrInsufficientProfiles is returned when fewer profiles resolve than the operation needs.
	ErrInsufficientProfiles = errors.New("not enough profiles")
	// ErrProfilesNotFound is returned when explicit ids were given and none of them exist.
	ErrProfilesNotFound = errors.New("no matching profiles found")
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// LoggerOrNop returns l, or a logger that drops everything when l is nil.
func LoggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// ProfileLister is the slice of nextdns.API needed for resolution.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]nextdns.Profile, error)
}

// Resolve lists the live profiles and narrows them to ids when any are given.
// The live listing order is kept. Explicit ids that match nothing fail with
// ErrProfilesNotFound; a result smaller than min fails with ErrInsufficientProfiles.
func Resolve(ctx context.Context, api ProfileLister, ids []string, min int) ([]nextdns.Profile, error) {
	live, err := api.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	selected := live
	if len(ids) > 0 {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		selected = nil
		for _, p := range live {
			if want[p.ID] {
				selected = append(selected, p)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrProfilesNotFound, strings.Join(ids, ", "))
		}
	}

	if len(selected) < min {
		return nil, fmt.Errorf("%w: need at least %d, found %d", ErrInsufficientProfiles, min, len(selected))
	}
	return selected, nil
}

// Missing returns the requested ids that are not among the resolved profiles.
func Missing(ids []string, resolved []nextdns.Profile) []string {
	have := make(map[string]bool, len(resolved))
	for _, p := range resolved {
		have[p.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// IDs returns the profile ids in order.
func IDs(profiles []nextdns.Profile) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids
}

// Throttle pauses for d regardless of how long the previous call took.
// It returns early with the context error if ctx is done first.
func Throttle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
