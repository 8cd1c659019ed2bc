package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	RATE_LIMIT_HTTP_STATUS = 429

	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	BodyString     string
}

// Options configures the retrying client built by NewClient.
type Options struct {
	Timeout time.Duration
	// RetryMax bounds how many times a rate-limited GET is re-sent. Zero disables
	// transport-level retries entirely.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Proxy        string
	// Logger is handed to retryablehttp as is. It may be nil, a retryablehttp.Logger
	// or a retryablehttp.LeveledLogger.
	Logger interface{}
}

// DefaultOptions mirrors the values used by the CLI when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:      defaultTimeout,
		RetryMax:     defaultRetryMax,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 10 * time.Second,
	}
}

// NewClient builds a retryablehttp client whose only retry trigger is a 429 on a GET.
// Writes are never replayed here; callers that want to retry a rate-limited write
// do it themselves.
func NewClient(opts Options) (*retryablehttp.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: timeout, Transport: transport}
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	client.CheckRetry = RateLimitRetryPolicy
	// Hand the last response back to the caller instead of a generic "giving up" error,
	// so the status code and error payload can still be inspected.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = opts.Logger
	return client, nil
}

// RateLimitRetryPolicy retries only idempotent reads that were answered with a 429.
func RateLimitRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, err
	}
	if resp.StatusCode != RATE_LIMIT_HTTP_STATUS {
		return false, nil
	}
	if resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false, nil
	}
	return true, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (wRes *WHTTPRes, err error) {
	if client == nil {
		if client, err = NewClient(DefaultOptions()); err != nil {
			return nil, err
		}
	}

	var body interface{}
	if len(wReq.Body) > 0 {
		body = bytes.NewReader(wReq.Body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "nxsync")
	req.Header.Set("Accept", "application/json")
	if len(wReq.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes = &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}
	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}
