// Package fakeapi is an in-memory nextdns.API used by tests and by the dashboard's
// demo mode. Profile data is kept as raw JSON so unknown vendor fields survive
// round trips the same way they do against the real service.
package fakeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Call is one recorded invocation.
type Call struct {
	Method    string
	ProfileID string
	Detail    string
}

type failure struct {
	method    string
	profileID string
	err       error
	times     int
}

// Fake implements nextdns.API. The zero value is not usable; call New.
type Fake struct {
	mu         sync.Mutex
	order      []string
	profiles   map[string]nextdns.Profile
	raw        map[string][]byte
	rewrites   map[string][]nextdns.Rewrite
	noRewrites map[string]bool
	failures   []*failure
	calls      []Call
	created    []json.RawMessage
	nextID     int
}

var _ nextdns.API = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		profiles:   map[string]nextdns.Profile{},
		raw:        map[string][]byte{},
		rewrites:   map[string][]nextdns.Rewrite{},
		noRewrites: map[string]bool{},
	}
}

// AddProfile seeds a profile. raw is the profile "data" object; empty means {}.
func (f *Fake) AddProfile(p nextdns.Profile, raw string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if raw == "" {
		raw = "{}"
	}
	if !gjson.Valid(raw) {
		panic(fmt.Sprintf("fakeapi: invalid JSON for profile %s", p.ID))
	}
	body := []byte(raw)
	if p.Name != "" && !gjson.GetBytes(body, "name").Exists() {
		body, _ = sjson.SetBytes(body, "name", p.Name)
	}
	if _, ok := f.profiles[p.ID]; !ok {
		f.order = append(f.order, p.ID)
	}
	f.profiles[p.ID] = p
	f.raw[p.ID] = body
	return f
}

// SetList replaces a domain list of a seeded profile.
func (f *Fake) SetList(profileID string, lt nextdns.ListType, entries ...nextdns.DomainEntry) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entries == nil {
		entries = []nextdns.DomainEntry{}
	}
	f.raw[profileID], _ = sjson.SetBytes(f.raw[profileID], string(lt), entries)
	return f
}

// SetRewrites replaces the rewrites of a seeded profile.
func (f *Fake) SetRewrites(profileID string, rws ...nextdns.Rewrite) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rewrites[profileID] = append([]nextdns.Rewrite(nil), rws...)
	return f
}

// DisableRewrites makes the rewrites endpoint answer not found for the profile.
func (f *Fake) DisableRewrites(profileID string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noRewrites[profileID] = true
	return f
}

// Fail makes the next times calls of method (on profileID, or any profile when
// empty) return err. A negative times fails forever.
func (f *Fake) Fail(method, profileID string, err error, times int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &failure{method: method, profileID: profileID, err: err, times: times})
	return f
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts recorded calls of method.
func (f *Fake) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// MutatingCalls counts calls that would change remote state.
func (f *Fake) MutatingCalls() int {
	n := 0
	for _, c := range f.Calls() {
		switch c.Method {
		case "CreateProfile", "AddDomainEntry", "UpdateDomainEntryStatus", "RemoveDomainEntry", "AddRewrite", "PutRewrites":
			n++
		}
	}
	return n
}

// Created returns the payloads passed to CreateProfile.
func (f *Fake) Created() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.created...)
}

// Raw returns the stored data object of a profile.
func (f *Fake) Raw(profileID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.raw[profileID]...)
}

// Entries returns the current list of a profile.
func (f *Fake) Entries(profileID string, lt nextdns.ListType) []nextdns.DomainEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries(profileID, lt)
}

// NotFound builds the error the real client returns on a 404.
func NotFound(method, path string) error {
	return &nextdns.APIError{Method: method, Path: path, Status: http.StatusNotFound,
		Errors: []nextdns.ErrorDetail{{Code: "notFound"}}}
}

// RateLimited builds the error the real client returns on a 429.
func RateLimited(method, path string) error {
	return &nextdns.APIError{Method: method, Path: path, Status: http.StatusTooManyRequests}
}

// enter records the call and returns an injected failure, if any. Callers hold mu.
func (f *Fake) enter(method, profileID, detail string) error {
	f.calls = append(f.calls, Call{Method: method, ProfileID: profileID, Detail: detail})
	for _, fl := range f.failures {
		if fl.method != method || (fl.profileID != "" && fl.profileID != profileID) || fl.times == 0 {
			continue
		}
		if fl.times > 0 {
			fl.times--
		}
		return fl.err
	}
	return nil
}

func (f *Fake) known(method, profileID string) error {
	if _, ok := f.raw[profileID]; !ok {
		return NotFound(method, "/profiles/"+profileID)
	}
	return nil
}

func (f *Fake) entries(profileID string, lt nextdns.ListType) []nextdns.DomainEntry {
	entries := []nextdns.DomainEntry{}
	gjson.GetBytes(f.raw[profileID], string(lt)).ForEach(func(_, v gjson.Result) bool {
		active := v.Get("active")
		entries = append(entries, nextdns.DomainEntry{ID: v.Get("id").String(), Active: !active.Exists() || active.Bool()})
		return true
	})
	return entries
}

func (f *Fake) entryIndex(profileID string, lt nextdns.ListType, domain string) int {
	for i, e := range f.entries(profileID, lt) {
		if e.ID == domain {
			return i
		}
	}
	return -1
}

func (f *Fake) ListProfiles(ctx context.Context) ([]nextdns.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListProfiles", "", ""); err != nil {
		return nil, err
	}
	out := make([]nextdns.Profile, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.profiles[id])
	}
	return out, nil
}

func (f *Fake) GetProfile(ctx context.Context, profileID string) (*nextdns.ProfileData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetProfile", profileID, ""); err != nil {
		return nil, err
	}
	if err := f.known("GET", profileID); err != nil {
		return nil, err
	}
	raw := f.raw[profileID]
	if len(f.rewrites[profileID]) > 0 {
		raw, _ = sjson.SetBytes(raw, "rewrites", f.rewrites[profileID])
	}
	pd, err := nextdns.DecodeProfileData(raw)
	if err != nil {
		return nil, err
	}
	pd.ID = profileID
	return pd, nil
}

func (f *Fake) CreateProfile(ctx context.Context, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if err := f.enter("CreateProfile", "", string(body)); err != nil {
		return "", err
	}
	f.created = append(f.created, body)
	f.nextID++
	id := fmt.Sprintf("new%d", f.nextID)
	f.order = append(f.order, id)
	f.profiles[id] = nextdns.Profile{ID: id, Name: gjson.GetBytes(body, "name").String()}
	f.raw[id] = body
	return id, nil
}

func (f *Fake) ListDomainEntries(ctx context.Context, profileID string, lt nextdns.ListType) ([]nextdns.DomainEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListDomainEntries", profileID, string(lt)); err != nil {
		return nil, err
	}
	if err := f.known("GET", profileID); err != nil {
		return nil, err
	}
	return f.entries(profileID, lt), nil
}

func (f *Fake) AddDomainEntry(ctx context.Context, profileID string, lt nextdns.ListType, domain string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddDomainEntry", profileID, fmt.Sprintf("%s %s %t", lt, domain, active)); err != nil {
		return err
	}
	if err := f.known("POST", profileID); err != nil {
		return err
	}
	if f.entryIndex(profileID, lt, domain) >= 0 {
		return &nextdns.APIError{Method: "POST", Path: "/profiles/" + profileID + "/" + string(lt), Status: http.StatusBadRequest,
			Errors: []nextdns.ErrorDetail{{Code: "duplicate"}}}
	}
	entries := append(f.entries(profileID, lt), nextdns.DomainEntry{ID: domain, Active: active})
	var err error
	f.raw[profileID], err = sjson.SetBytes(f.raw[profileID], string(lt), entries)
	return err
}

func (f *Fake) UpdateDomainEntryStatus(ctx context.Context, profileID string, lt nextdns.ListType, domain string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateDomainEntryStatus", profileID, fmt.Sprintf("%s %s %t", lt, domain, active)); err != nil {
		return err
	}
	i := f.entryIndex(profileID, lt, domain)
	if i < 0 {
		return NotFound("PATCH", "/profiles/"+profileID+"/"+string(lt)+"/"+domain)
	}
	var err error
	f.raw[profileID], err = sjson.SetBytes(f.raw[profileID], fmt.Sprintf("%s.%d.active", lt, i), active)
	return err
}

func (f *Fake) RemoveDomainEntry(ctx context.Context, profileID string, lt nextdns.ListType, domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RemoveDomainEntry", profileID, fmt.Sprintf("%s %s", lt, domain)); err != nil {
		return err
	}
	i := f.entryIndex(profileID, lt, domain)
	if i < 0 {
		return NotFound("DELETE", "/profiles/"+profileID+"/"+string(lt)+"/"+domain)
	}
	var err error
	f.raw[profileID], err = sjson.DeleteBytes(f.raw[profileID], fmt.Sprintf("%s.%d", lt, i))
	return err
}

func (f *Fake) ListRewrites(ctx context.Context, profileID string) ([]nextdns.Rewrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListRewrites", profileID, ""); err != nil {
		return nil, err
	}
	if f.noRewrites[profileID] {
		return nil, NotFound("GET", "/profiles/"+profileID+"/rewrites")
	}
	if err := f.known("GET", profileID); err != nil {
		return nil, err
	}
	out := make([]nextdns.Rewrite, 0, len(f.rewrites[profileID]))
	for i, rw := range f.rewrites[profileID] {
		if rw.ID == "" {
			rw.ID = fmt.Sprintf("rw%d", i+1)
		}
		if rw.Type == "" {
			rw.Type = "A"
		}
		out = append(out, rw)
	}
	return out, nil
}

func (f *Fake) AddRewrite(ctx context.Context, profileID string, rw nextdns.Rewrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddRewrite", profileID, rw.Name); err != nil {
		return err
	}
	if err := f.known("POST", profileID); err != nil {
		return err
	}
	f.rewrites[profileID] = append(f.rewrites[profileID], nextdns.Rewrite{Name: rw.Name, Content: rw.Content})
	return nil
}

func (f *Fake) PutRewrites(ctx context.Context, profileID string, rws []nextdns.Rewrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutRewrites", profileID, fmt.Sprint(len(rws))); err != nil {
		return err
	}
	if err := f.known("PUT", profileID); err != nil {
		return err
	}
	stripped := make([]nextdns.Rewrite, 0, len(rws))
	for _, rw := range rws {
		stripped = append(stripped, nextdns.Rewrite{Name: rw.Name, Content: rw.Content})
	}
	f.rewrites[profileID] = stripped
	return nil
}
