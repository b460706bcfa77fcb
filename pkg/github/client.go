package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orgraph/pkg/buildinfo"
	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
	"github.com/matzehuels/orgraph/pkg/httputil"
	"github.com/matzehuels/orgraph/pkg/observability"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// DefaultPerPage is the page size for the organization listing (GitHub's maximum).
	DefaultPerPage = 100

	// DefaultTimeout bounds each individual HTTP request.
	DefaultTimeout = 30 * time.Second

	maxBodySize = 16 << 20
)

var (
	// ErrNotFound is returned when a repository, file or directory doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Options configures a [Client].
type Options struct {
	Org        string        // Organization login (required)
	Token      string        // Personal access token, optional
	BaseURL    string        // API endpoint, defaults to [DefaultBaseURL]
	PerPage    int           // Listing page size, defaults to [DefaultPerPage]
	Timeout    time.Duration // Per-request timeout, defaults to [DefaultTimeout]
	Policy     httputil.Policy
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client fetches organization listings and repository content from GitHub.
// It is safe for concurrent use; each call carries its own backoff state.
type Client struct {
	org     string
	token   string
	baseURL string
	perPage int
	timeout time.Duration
	policy  httputil.Policy
	http    *http.Client
	logger  *log.Logger
}

// NewClient creates a Client for opts.Org.
func NewClient(opts Options) (*Client, error) {
	if err := orgerrors.ValidateOrgName(opts.Org); err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := orgerrors.ValidateURL(baseURL); err != nil {
		return nil, err
	}

	c := &Client{
		org:     opts.Org,
		token:   opts.Token,
		baseURL: baseURL,
		perPage: opts.PerPage,
		timeout: opts.Timeout,
		policy:  opts.Policy,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
	if c.perPage <= 0 || c.perPage > DefaultPerPage {
		c.perPage = DefaultPerPage
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c, nil
}

// Org returns the organization the client is bound to.
func (c *Client) Org() string { return c.org }

// FetchUser returns the account the client's token authenticates as. An
// invalid or missing token yields an UNAUTHORIZED error.
func (c *Client) FetchUser(ctx context.Context) (*User, error) {
	body, err := c.get(ctx, c.policy.NewBackoff(), "/user")
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "decode user")
	}
	return &u, nil
}

// ListOrgRepos fetches the organization's repositories page by page until an
// empty page is returned or limit repositories have been collected.
// A limit of zero or less means no limit.
func (c *Client) ListOrgRepos(ctx context.Context, limit int) ([]Repo, error) {
	var all []Repo
	b := c.policy.NewBackoff()
	for page := 1; ; page++ {
		repos, err := c.fetchPage(ctx, b, page, c.perPage)
		if err != nil {
			return nil, fmt.Errorf("list repos page %d: %w", page, err)
		}
		if len(repos) == 0 {
			break
		}
		all = append(all, repos...)
		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
	}
	c.logger.Debug("listed repositories", "org", c.org, "count", len(all))
	return all, nil
}

// FetchPage fetches one page (1-based) of the organization's repository listing.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) ([]Repo, error) {
	return c.fetchPage(ctx, c.policy.NewBackoff(), page, perPage)
}

func (c *Client) fetchPage(ctx context.Context, b *httputil.Backoff, page, perPage int) ([]Repo, error) {
	q := url.Values{}
	q.Set("type", "all")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	apiPath := fmt.Sprintf("/orgs/%s/repos?%s", url.PathEscape(c.org), q.Encode())

	body, err := c.get(ctx, b, apiPath)
	if err != nil {
		return nil, err
	}
	var repos []Repo
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "decode repository page")
	}
	return repos, nil
}

// FetchFile retrieves and decodes a file from the default branch of repo.
// It returns nil and no error when the file does not exist or path is not a file.
func (c *Client) FetchFile(ctx context.Context, repo, path string) (*FileContent, error) {
	apiPath, err := c.contentsPath(repo, path)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, c.policy.NewBackoff(), apiPath)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if isJSONArray(body) {
		return nil, nil
	}

	var item apiContentResponse
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "decode %s/%s", repo, path)
	}
	if item.Type != "file" {
		return nil, nil
	}
	if item.Encoding != "base64" {
		return nil, orgerrors.New(orgerrors.ErrCodeParseFailure, "%s/%s: unsupported encoding %q", repo, path, item.Encoding)
	}

	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(item.Content, "\n", ""))
	if err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "decode content of %s/%s", repo, path)
	}
	return &FileContent{
		Path:    item.Path,
		Size:    item.Size,
		SHA:     item.SHA,
		Content: string(content),
	}, nil
}

// ListDir lists the entries of a directory in repo. The empty path is the root.
// It returns nil and no error when the directory does not exist or path is a file.
func (c *Client) ListDir(ctx context.Context, repo, path string) ([]ContentItem, error) {
	apiPath, err := c.contentsPath(repo, path)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, c.policy.NewBackoff(), apiPath)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !isJSONArray(body) {
		return nil, nil
	}

	var items []apiContentResponse
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "decode listing of %s/%s", repo, path)
	}
	result := make([]ContentItem, len(items))
	for i, item := range items {
		result[i] = ContentItem{
			Name: item.Name,
			Path: item.Path,
			Type: item.Type,
			Size: item.Size,
		}
	}
	return result, nil
}

func (c *Client) contentsPath(repo, path string) (string, error) {
	if err := orgerrors.ValidateRepoName(repo); err != nil {
		return "", err
	}
	if err := orgerrors.ValidatePath(path); err != nil {
		return "", err
	}
	p := fmt.Sprintf("/repos/%s/%s/contents", url.PathEscape(c.org), url.PathEscape(repo))
	if path == "" {
		return p, nil
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return p + "/" + strings.Join(segs, "/"), nil
}

// get runs one logical request through the retry policy, sharing b across attempts.
func (c *Client) get(ctx context.Context, b *httputil.Backoff, apiPath string) ([]byte, error) {
	p := c.policy
	onRetry := p.OnRetry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		var rl *orgerrors.RateLimitedError
		if errors.As(err, &rl) {
			c.logger.Warn("rate limited, backing off", "path", apiPath, "attempt", attempt, "wait", wait)
			observability.HTTP().OnThrottle(ctx, apiPath, attempt, wait)
		} else {
			c.logger.Debug("retrying request", "path", apiPath, "attempt", attempt, "wait", wait, "err", err)
		}
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
	}

	var body []byte
	err := p.DoWith(ctx, b, func(ctx context.Context) error {
		var err error
		body, err = c.doRequest(ctx, apiPath)
		return err
	})
	return body, err
}

func (c *Client) doRequest(ctx context.Context, apiPath string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+apiPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	hooks := observability.HTTP()
	host := req.URL.Host
	hooks.OnRequest(ctx, req.Method, host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, orgerrors.Wrap(orgerrors.ErrCodeTimeout, err, "GET %s timed out after %s", apiPath, c.timeout)
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	hooks.OnResponse(ctx, req.Method, host, req.URL.Path, resp.StatusCode, time.Since(start))
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, orgerrors.Wrap(orgerrors.ErrCodeTimeout, err, "GET %s timed out after %s", apiPath, c.timeout)
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	if err := checkStatus(resp, body, time.Now()); err != nil {
		return nil, err
	}
	return body, nil
}

// setHeaders sets common headers for GitHub API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response, body []byte, now time.Time) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized:
		return orgerrors.New(orgerrors.ErrCodeUnauthorized, "GitHub rejected the token (401)")
	case code == http.StatusTooManyRequests:
		return &orgerrors.RateLimitedError{StatusCode: code, ResetAt: resetHint(resp.Header, now), Message: apiMessage(body)}
	case code == http.StatusForbidden:
		if isThrottle(resp.Header, body) {
			return &orgerrors.RateLimitedError{StatusCode: code, ResetAt: resetHint(resp.Header, now), Message: apiMessage(body)}
		}
		return orgerrors.New(orgerrors.ErrCodeForbidden, "GitHub API forbidden (403): %s", apiMessage(body))
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, code, apiMessage(body))
	}
}

// isThrottle distinguishes a rate limit 403 from a permission 403.
func isThrottle(h http.Header, body []byte) bool {
	if h.Get("X-RateLimit-Remaining") == "0" || h.Get("Retry-After") != "" {
		return true
	}
	return bytes.Contains(bytes.ToLower(body), []byte("rate limit"))
}

// resetHint returns when the server says the quota resets, or the zero time.
// Retry-After takes precedence over X-RateLimit-Reset.
func resetHint(h http.Header, now time.Time) time.Time {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second)
		}
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && unix > 0 {
			return time.Unix(unix, 0)
		}
	}
	return time.Time{}
}

func apiMessage(body []byte) string {
	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		return msg.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
