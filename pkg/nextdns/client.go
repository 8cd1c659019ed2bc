package nextdns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nxsync/nxsync/pkg/whttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultBaseURL = "https://api.nextdns.io"
	apiKeyHeader   = "X-Api-Key"
)

// Client talks to the vendor REST API with a single API key.
type Client struct {
	apiKey  string
	baseURL string
	http    *retryablehttp.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *retryablehttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("an API key is required (set nextdns.apikey in config, NXSYNC_NEXTDNS_APIKEY or --api-key)")
	}
	c := &Client{apiKey: apiKey, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		hc, err := whttp.NewClient(whttp.DefaultOptions())
		if err != nil {
			return nil, err
		}
		c.http = hc
	}
	return c, nil
}

// do sends one request and returns the parsed body. The vendor sometimes answers
// 200 with an "errors" array; that is turned into an *APIError like any non-2xx.
// A 204 is a valid empty success.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	started := time.Now()
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: []whttp.WHTTPHeader{{Name: apiKeyHeader, Value: c.apiKey}},
		Body:    body,
	}, c.http)
	if err != nil {
		observe(method, 0, started)
		return gjson.Result{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	observe(method, res.StatusCode, started)

	if res.StatusCode == http.StatusNoContent {
		return gjson.Result{}, nil
	}

	details := parseErrors(res.BodyString)
	if res.StatusCode < 200 || res.StatusCode > 299 || len(details) > 0 {
		return gjson.Result{}, &APIError{Method: method, Path: path, Status: res.StatusCode, Errors: details}
	}

	if strings.TrimSpace(res.BodyString) == "" {
		return gjson.Result{}, nil
	}
	if !gjson.Valid(res.BodyString) {
		return gjson.Result{}, fmt.Errorf("%s %s: response is not valid JSON", method, path)
	}
	return gjson.Parse(res.BodyString), nil
}

func profilePath(profileID string, parts ...string) string {
	p := "/profiles/" + url.PathEscape(profileID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	cursor := ""
	for {
		path := "/profiles"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}
		res, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var page []Profile
		if data := res.Get("data"); data.Exists() {
			if err := json.Unmarshal([]byte(data.Raw), &page); err != nil {
				return nil, fmt.Errorf("decoding profiles: %w", err)
			}
		}
		profiles = append(profiles, page...)

		cursor = res.Get("meta.pagination.cursor").String()
		if cursor == "" || len(page) == 0 {
			break
		}
	}
	return profiles, nil
}

func (c *Client) GetProfile(ctx context.Context, profileID string) (*ProfileData, error) {
	res, err := c.do(ctx, http.MethodGet, profilePath(profileID), nil)
	if err != nil {
		return nil, err
	}
	data := res.Get("data")
	if !data.IsObject() {
		return nil, fmt.Errorf("profile %s: response has no data object", profileID)
	}
	pd, err := DecodeProfileData([]byte(data.Raw))
	if err != nil {
		return nil, err
	}
	if pd.ID == "" {
		pd.ID = profileID
	}
	return pd, nil
}

func (c *Client) CreateProfile(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding profile payload: %w", err)
	}
	res, err := c.do(ctx, http.MethodPost, "/profiles", body)
	if err != nil {
		return "", err
	}
	id := res.Get("data.id").String()
	if id == "" {
		return "", errors.New("create profile: response did not include the new profile id")
	}
	return id, nil
}

func (c *Client) ListDomainEntries(ctx context.Context, profileID string, lt ListType) ([]DomainEntry, error) {
	res, err := c.do(ctx, http.MethodGet, profilePath(profileID, string(lt)), nil)
	if err != nil {
		return nil, err
	}
	entries := []DomainEntry{}
	res.Get("data").ForEach(func(_, value gjson.Result) bool {
		active := value.Get("active")
		entries = append(entries, DomainEntry{
			ID: value.Get("id").String(),
			// An entry without the flag is active, like in the vendor UI.
			Active: !active.Exists() || active.Bool(),
		})
		return true
	})
	return entries, nil
}

func (c *Client) AddDomainEntry(ctx context.Context, profileID string, lt ListType, domain string, active bool) error {
	body, err := json.Marshal(DomainEntry{ID: domain, Active: active})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, profilePath(profileID, string(lt)), body)
	return err
}

func (c *Client) UpdateDomainEntryStatus(ctx context.Context, profileID string, lt ListType, domain string, active bool) error {
	body, err := sjson.SetBytes([]byte(`{}`), "active", active)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPatch, profilePath(profileID, string(lt), domain), body)
	return err
}

func (c *Client) RemoveDomainEntry(ctx context.Context, profileID string, lt ListType, domain string) error {
	_, err := c.do(ctx, http.MethodDelete, profilePath(profileID, string(lt), domain), nil)
	return err
}

func (c *Client) ListRewrites(ctx context.Context, profileID string) ([]Rewrite, error) {
	res, err := c.do(ctx, http.MethodGet, profilePath(profileID, "rewrites"), nil)
	if err != nil {
		return nil, err
	}
	rewrites := []Rewrite{}
	if data := res.Get("data"); data.IsArray() {
		if err := json.Unmarshal([]byte(data.Raw), &rewrites); err != nil {
			return nil, fmt.Errorf("decoding rewrites: %w", err)
		}
	}
	return rewrites, nil
}

func (c *Client) AddRewrite(ctx context.Context, profileID string, rw Rewrite) error {
	body, err := json.Marshal(Rewrite{Name: rw.Name, Content: rw.Content})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, profilePath(profileID, "rewrites"), body)
	return err
}

func (c *Client) PutRewrites(ctx context.Context, profileID string, rws []Rewrite) error {
	stripped := make([]Rewrite, 0, len(rws))
	for _, rw := range rws {
		stripped = append(stripped, Rewrite{Name: rw.Name, Content: rw.Content})
	}
	body, err := json.Marshal(stripped)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, profilePath(profileID, "rewrites"), body)
	return err
}
