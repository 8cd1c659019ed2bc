package nextdns_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/whttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *nextdns.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	hc, err := whttp.NewClient(whttp.Options{
		Timeout:      5 * time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	require.NoError(t, err)

	c, err := nextdns.NewClient("test-key", nextdns.WithBaseURL(srv.URL), nextdns.WithHTTPClient(hc))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := nextdns.NewClient("  ")
	assert.Error(t, err)
}

func TestErrorPayloadOnSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"errors":[{"code":"notFound","message":"entry does not exist"}]}`)
	})

	err := c.UpdateDomainEntryStatus(context.Background(), "abc123", nextdns.Denylist, "ads.example.com", true)
	require.Error(t, err)

	var apiErr *nextdns.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.True(t, nextdns.IsNotFound(err))
	assert.False(t, nextdns.IsRateLimited(err))
}

func TestNoContentIsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/profiles/abc123/denylist/ads.example.com", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.RemoveDomainEntry(context.Background(), "abc123", nextdns.Denylist, "ads.example.com")
	assert.NoError(t, err)
}

func TestNotFoundStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.RemoveDomainEntry(context.Background(), "abc123", nextdns.Allowlist, "gone.example.com")
	require.Error(t, err)
	assert.True(t, nextdns.IsNotFound(err))
}

func TestRateLimitedWriteIsNotRetried(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := c.AddDomainEntry(context.Background(), "abc123", nextdns.Denylist, "ads.example.com", true)
	require.Error(t, err)
	assert.True(t, nextdns.IsRateLimited(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestRateLimitedReadIsRetried(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"data":[{"id":"ads.example.com","active":true},{"id":"old.example.com","active":false}]}`)
	})

	entries, err := c.ListDomainEntries(context.Background(), "abc123", nextdns.Denylist)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	assert.Equal(t, []nextdns.DomainEntry{
		{ID: "ads.example.com", Active: true},
		{ID: "old.example.com", Active: false},
	}, entries)
}

func TestListProfilesFollowsCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if r.URL.Query().Get("cursor") == "" {
			io.WriteString(w, `{"data":[{"id":"p1","name":"Home"}],"meta":{"pagination":{"cursor":"next"}}}`)
			return
		}
		io.WriteString(w, `{"data":[{"id":"p2","name":"Kids","fingerprint":"fp2"}],"meta":{"pagination":{"cursor":null}}}`)
	})

	profiles, err := c.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []nextdns.Profile{
		{ID: "p1", Name: "Home"},
		{ID: "p2", Name: "Kids", Fingerprint: "fp2"},
	}, profiles)
}

func TestGetProfileKeepsRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"name":"Home","security":{"csam":true,"brandNew":1},"denylist":[{"id":"a.com","active":true}]}}`)
	})

	pd, err := c.GetProfile(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", pd.ID)
	assert.Equal(t, "Home", pd.Name)
	require.NotNil(t, pd.Security)
	require.NotNil(t, pd.Security.CSAM)
	assert.True(t, *pd.Security.CSAM)
	assert.Len(t, pd.Denylist, 1)
	assert.EqualValues(t, 1, gjson.GetBytes(pd.Raw, "security.brandNew").Int())
}

func TestCreateProfileReturnsID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Home (Copy)", gjson.GetBytes(body, "name").String())
		io.WriteString(w, `{"data":{"id":"new1"}}`)
	})

	id, err := c.CreateProfile(context.Background(), map[string]string{"name": "Home (Copy)"})
	require.NoError(t, err)
	assert.Equal(t, "new1", id)
}

func TestPutRewritesStripsServerFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[{"name":"nas.lan","content":"192.168.1.10"}]`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.PutRewrites(context.Background(), "p1", []nextdns.Rewrite{
		{ID: "x1", Name: "nas.lan", Type: "A", Content: "192.168.1.10"},
	})
	assert.NoError(t, err)
}
