package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nxsync/nxsync/internal/fakeapi"
	"github.com/nxsync/nxsync/pkg/clone"
	"github.com/nxsync/nxsync/pkg/domains"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/profilediff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	accounts map[string]*fakeapi.Fake
	srv      *httptest.Server
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	home := fakeapi.New().
		AddProfile(nextdns.Profile{ID: "p1", Name: "Home"}, `{"security":{"csam":true}}`).
		AddProfile(nextdns.Profile{ID: "p2", Name: "Kids"}, `{"security":{"csam":false}}`).
		SetList("p1", nextdns.Denylist, nextdns.DomainEntry{ID: "ads.example.com", Active: true})
	h := &harness{accounts: map[string]*fakeapi.Fake{"home-key": home, "work-key": fakeapi.New()}}

	factory := func(key string) (nextdns.API, error) {
		if f, ok := h.accounts[key]; ok {
			return f, nil
		}
		return nil, errors.New("unknown key")
	}
	cfg.Delay = time.Nanosecond
	cfg.RetryDelay = time.Nanosecond
	cfg.NoLock = true
	h.srv = httptest.NewServer(New(factory, cfg).Router())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRequiresAPIKey(t *testing.T) {
	h := newHarness(t, Config{})
	resp := h.do(t, http.MethodGet, "/api/profiles", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	h := newHarness(t, Config{Username: "admin", Password: "secret"})
	resp := h.do(t, http.MethodGet, "/api/profiles", "home-key", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/api/profiles", nil)
	req.SetBasicAuth("admin", "secret")
	req.Header.Set(apiKeyHeader, "home-key")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestProfiles(t *testing.T) {
	h := newHarness(t, Config{})
	resp := h.do(t, http.MethodGet, "/api/profiles", "home-key", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profiles []nextdns.Profile
	decodeBody(t, resp, &profiles)
	assert.Len(t, profiles, 2)
}

func TestDomains(t *testing.T) {
	h := newHarness(t, Config{})
	resp := h.do(t, http.MethodPost, "/api/domains", "home-key",
		`{"domain":"https://ADS.example.com/x","listType":"denylist","action":"remove"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res domains.Result
	decodeBody(t, resp, &res)
	assert.Equal(t, "ads.example.com", res.Domain)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, "not found (already removed)", res.Results[1].Message)

	resp = h.do(t, http.MethodPost, "/api/domains", "home-key", `{"domain":"com","listType":"denylist","action":"add"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncAnalyzeAndExecute(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.do(t, http.MethodPost, "/api/sync/analyze", "home-key", `{"target":"denylist"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var analyzed SyncResponse
	decodeBody(t, resp, &analyzed)
	assert.Equal(t, 1, analyzed.OperationCount)
	assert.Nil(t, analyzed.Summary)

	resp = h.do(t, http.MethodPost, "/api/sync/execute", "home-key", `{"target":"both","dryRun":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, h.accounts["home-key"].MutatingCalls())

	resp = h.do(t, http.MethodPost, "/api/sync/execute", "home-key", `{"target":"both"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var executed SyncResponse
	decodeBody(t, resp, &executed)
	require.NotNil(t, executed.Summary)
	assert.Equal(t, 1, executed.Summary.AddSuccess)
	assert.Len(t, h.accounts["home-key"].Entries("p2", nextdns.Denylist), 1)

	resp = h.do(t, http.MethodPost, "/api/sync/analyze", "home-key", `{"profileIds":["p1"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiff(t *testing.T) {
	h := newHarness(t, Config{})
	resp := h.do(t, http.MethodPost, "/api/diff", "home-key", `{"sections":["security"],"diffOnly":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res profilediff.Result
	decodeBody(t, resp, &res)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "csam", res.Tables[0].Rows[0].Label)

	resp = h.do(t, http.MethodPost, "/api/diff", "home-key", `{"sections":["dns"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCopyToOtherAccount(t *testing.T) {
	h := newHarness(t, Config{})
	resp := h.do(t, http.MethodPost, "/api/copy", "home-key", `{"sourceProfileId":"p1","destKey":"work-key"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res clone.Result
	decodeBody(t, resp, &res)
	assert.True(t, res.Success)
	assert.Equal(t, "new1", res.NewProfileID)
	assert.Len(t, h.accounts["work-key"].Created(), 1)
	assert.Zero(t, h.accounts["home-key"].CallCount("CreateProfile"))

	resp = h.do(t, http.MethodPost, "/api/copy", "home-key", `{"sourceProfileId":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
