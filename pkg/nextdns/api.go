package nextdns

import "context"

// API is the capability surface the core consumes. A value is bound to a single
// account credential; operations across two accounts need two values.
type API interface {
	ListProfiles(ctx context.Context) ([]Profile, error)
	GetProfile(ctx context.Context, profileID string) (*ProfileData, error)
	// CreateProfile posts the payload as is and returns the new profile id.
	CreateProfile(ctx context.Context, payload any) (string, error)

	ListDomainEntries(ctx context.Context, profileID string, lt ListType) ([]DomainEntry, error)
	AddDomainEntry(ctx context.Context, profileID string, lt ListType, domain string, active bool) error
	// UpdateDomainEntryStatus fails with an ErrNotFound-matching error when the entry does not exist.
	UpdateDomainEntryStatus(ctx context.Context, profileID string, lt ListType, domain string, active bool) error
	// RemoveDomainEntry fails with an ErrNotFound-matching error when the entry does not exist.
	RemoveDomainEntry(ctx context.Context, profileID string, lt ListType, domain string) error

	// ListRewrites fails with an ErrNotFound-matching error when the profile tier has no rewrites.
	ListRewrites(ctx context.Context, profileID string) ([]Rewrite, error)
	AddRewrite(ctx context.Context, profileID string, rw Rewrite) error
	PutRewrites(ctx context.Context, profileID string, rws []Rewrite) error
}

var _ API = (*Client)(nil)
