// Package publish talks to a Wikibase Action API: bot login, CSRF token
// acquisition and item creation, with every failure classified for retry.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/util"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

// maxResponseBytes bounds API response bodies
const maxResponseBytes = 8 << 20

// anonymousToken is the CSRF token handed to sessions that are not logged in
const anonymousToken = `+\`

// Options configures a Client
type Options struct {
	APIURL     string
	UserAgent  string
	Timeout    time.Duration
	Summary    string
	Bot        bool
	MaxLag     int
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
	Logger     *slog.Logger
}

// OptionsFromConfig builds client options for the given target
func OptionsFromConfig(cfg model.WikibaseConfig, target model.Target) Options {
	return Options{
		APIURL:     cfg.APIURL(target),
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		Summary:    cfg.Summary,
		Bot:        cfg.Bot,
		MaxLag:     cfg.MaxLag,
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: cfg.HTTPSProxy,
		NoProxy:    cfg.NoProxy,
	}
}

// Client is an Action API client bound to one api.php endpoint. It keeps the
// login session in a cookie jar and is safe for concurrent use.
type Client struct {
	apiURL     string
	userAgent  string
	summary    string
	bot        bool
	maxLag     int
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.RWMutex
	user string
}

// NewClient creates a client for opts.APIURL
func NewClient(opts Options) (*Client, error) {
	parsed, err := url.Parse(opts.APIURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid api url %q", opts.APIURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = model.DefaultConfig().Wikibase.UserAgent
	}

	return &Client{
		apiURL:    opts.APIURL,
		userAgent: userAgent,
		summary:   opts.Summary,
		bot:       opts.Bot,
		maxLag:    opts.MaxLag,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "publish", "api", opts.APIURL),
	}, nil
}

// APIURL returns the endpoint this client talks to
func (c *Client) APIURL() string {
	return c.apiURL
}

// User returns the logged-in account name, or "" for an anonymous session
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

type apiError struct {
	Code     string `json:"code"`
	Info     string `json:"info"`
	Messages []struct {
		Name string `json:"name"`
	} `json:"messages"`
}

type tokensResponse struct {
	Query struct {
		Tokens struct {
			LoginToken string `json:"logintoken"`
			CSRFToken  string `json:"csrftoken"`
		} `json:"tokens"`
	} `json:"query"`
}

type loginResponse struct {
	Login struct {
		Result     string `json:"result"`
		Reason     string `json:"reason"`
		LgUsername string `json:"lgusername"`
	} `json:"login"`
}

type editResponse struct {
	Success int             `json:"success"`
	Entity  json.RawMessage `json:"entity"`
}

// Login authenticates with a bot password. The session cookie is kept for later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return &Error{Kind: KindFatal, Code: "login-missing-credentials", Info: "bot username and password are required"}
	}

	var tokens tokensResponse
	if err := c.get(ctx, url.Values{"action": {"query"}, "meta": {"tokens"}, "type": {"login"}}, &tokens); err != nil {
		return fmt.Errorf("fetch login token: %w", err)
	}
	if tokens.Query.Tokens.LoginToken == "" {
		return &Error{Kind: KindFatal, Code: "login-no-token", Info: "response carried no login token"}
	}

	var resp loginResponse
	form := url.Values{
		"action":     {"login"},
		"lgname":     {username},
		"lgpassword": {password},
		"lgtoken":    {tokens.Query.Tokens.LoginToken},
	}
	if err := c.post(ctx, form, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if resp.Login.Result != "Success" {
		return &Error{
			Kind: KindFatal,
			Code: "login-" + strings.ToLower(resp.Login.Result),
			Info: resp.Login.Reason,
		}
	}

	name := resp.Login.LgUsername
	if name == "" {
		name = username
	}
	c.mu.Lock()
	c.user = name
	c.mu.Unlock()

	c.logger.Info("logged in", "user", name)
	return nil
}

// FetchCSRFToken returns an edit token for the current session
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	var tokens tokensResponse
	if err := c.get(ctx, url.Values{"action": {"query"}, "meta": {"tokens"}}, &tokens); err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}

	token := tokens.Query.Tokens.CSRFToken
	if token == "" {
		return "", &Error{Kind: classifyAPIErrorCode("notoken"), Code: "notoken", Info: "response carried no csrf token"}
	}
	if token == anonymousToken {
		c.logger.Warn("csrf token belongs to an anonymous session")
	}
	return token, nil
}

// Result is a successful item creation
type Result struct {
	QID       string
	LastRevID int64
	Entity    json.RawMessage // Entity document as returned by the API
}

// Publish creates a new item from entity using the given CSRF token
func (c *Client) Publish(ctx context.Context, entity *wikibase.Entity, csrfToken string) (*Result, error) {
	if entity == nil {
		return nil, &Error{Kind: KindFatal, Code: "no-entity", Info: "nothing to publish"}
	}
	if csrfToken == "" {
		return nil, &Error{Kind: KindToken, Code: "notoken", Info: "csrf token is empty"}
	}

	doc := *entity
	doc.ID = ""
	doc.LastRevID = 0
	doc.Modified = ""
	data, err := json.Marshal(&doc)
	if err != nil {
		return nil, &Error{Kind: KindFatal, Code: "encode", Err: err}
	}

	form := url.Values{
		"action": {"wbeditentity"},
		"new":    {"item"},
		"data":   {string(data)},
		"token":  {csrfToken},
	}
	if c.bot {
		form.Set("bot", "1")
	}
	if c.summary != "" {
		form.Set("summary", c.summary)
	}

	var resp editResponse
	if err := c.post(ctx, form, &resp); err != nil {
		return nil, err
	}

	var created struct {
		ID        string `json:"id"`
		LastRevID int64  `json:"lastrevid"`
	}
	if len(resp.Entity) > 0 {
		if err := json.Unmarshal(resp.Entity, &created); err != nil {
			return nil, &Error{Kind: KindFatal, Code: "malformed-response", Err: err}
		}
	}
	if resp.Success != 1 || !wikibase.IsQID(created.ID) {
		return nil, &Error{
			Kind: KindFatal,
			Code: "malformed-response",
			Info: fmt.Sprintf("success=%d id=%q", resp.Success, created.ID),
		}
	}

	c.logger.Info("item created", "qid", created.ID, "revision", created.LastRevID)
	return &Result{QID: created.ID, LastRevID: created.LastRevID, Entity: resp.Entity}, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return &Error{Kind: KindFatal, Code: "request", Err: err}
	}
	return c.do(req, params.Get("action"), out)
}

func (c *Client) post(ctx context.Context, form url.Values, out interface{}) error {
	form.Set("format", "json")
	if c.maxLag > 0 {
		form.Set("maxlag", strconv.Itoa(c.maxLag))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &Error{Kind: KindFatal, Code: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, form.Get("action"), out)
}

// do executes req and decodes the JSON body into out, classifying every failure
func (c *Client) do(req *http.Request, action string, out interface{}) error {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "action", action, "error", err)
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api response", "action", action, "status", resp.StatusCode, "duration", time.Since(start))

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	if kind := classifyHTTPStatus(resp.StatusCode); kind != "" {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &Error{
			Kind:       kind,
			Code:       fmt.Sprintf("http-%d", resp.StatusCode),
			Info:       http.StatusText(resp.StatusCode),
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindTransient, Code: "network", StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &Error{Kind: KindFatal, Code: "malformed-response", StatusCode: resp.StatusCode, Err: err}
	}
	if envelope.Error != nil {
		apiErr := &Error{
			Kind:       classifyAPIErrorCode(envelope.Error.Code),
			Code:       envelope.Error.Code,
			Info:       envelope.Error.Info,
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
		}
		for _, m := range envelope.Error.Messages {
			apiErr.Messages = append(apiErr.Messages, m.Name)
		}
		c.logger.Warn("api error", "action", action, "code", apiErr.Code, "kind", apiErr.Kind, "info", apiErr.Info)
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindFatal, Code: "malformed-response", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// parseRetryAfter reads a delay-seconds Retry-After header
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
