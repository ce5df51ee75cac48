package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chessaroo/internal/server/core"

	"github.com/valyala/fasthttp"
)

const (
	DefaultBaseURL   = "https://www.chess.com"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Chessaroo/1.0 (https://github.com/jon-emerson/chessaroo)"

	maxRedirects = 5
)

// Payload is a fetched game: the raw body kept verbatim plus its decoded form
type Payload struct {
	Raw  string
	Data map[string]any
}

// Client talks to the chess.com game-data endpoint. Each Fetch is a single
// attempt; retrying is left to the caller.
type Client struct {
	baseURL   string
	http      *fasthttp.Client
	timeout   time.Duration
	userAgent string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &fasthttp.Client{
		Name:            c.userAgent,
		ReadTimeout:     c.timeout,
		WriteTimeout:    c.timeout,
		MaxConnsPerHost: 16,
	}
	return c
}

// GameURL is the live-game callback endpoint for an ID
func (c *Client) GameURL(gameID string) string {
	return fmt.Sprintf("%s/callback/live/game/%s", c.baseURL, gameID)
}

// Fetch retrieves one game. Failures are *core.Error values carrying 502 for an
// unreachable host, a failing status or a malformed body, and 404 for a missing game.
func (c *Client) Fetch(ctx context.Context, gameID string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamUnreachable, "Unable to reach Chess.com", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.GameURL(gameID))
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	deadline := c.deadline(ctx)
	for hops := 0; ; hops++ {
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamUnreachable, "Unable to reach Chess.com", err)
		}
		location := resp.Header.Peek(fasthttp.HeaderLocation)
		if !isRedirect(resp.StatusCode()) || len(location) == 0 {
			break
		}
		if hops == maxRedirects {
			return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamFailure, "Failed to fetch game from Chess.com",
				fmt.Errorf("stopped after %d redirects", maxRedirects))
		}
		// Relative locations resolve against the current URI
		req.URI().UpdateBytes(location)
		resp.Reset()
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusNotFound {
		return nil, core.Upstream(http.StatusNotFound, core.ErrUpstreamNotFound, "Chess.com game not found", nil)
	}
	if status < 200 || status >= 300 {
		return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamFailure, "Failed to fetch game from Chess.com",
			fmt.Errorf("unexpected status %d from %s", status, c.GameURL(gameID)))
	}

	// resp.Body is recycled on release
	raw := string(resp.Body())

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamBadPayload, "Invalid data received from Chess.com", err)
	}
	data, ok := decoded.(map[string]any)
	if !ok {
		return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamBadPayload, "Invalid data received from Chess.com",
			fmt.Errorf("payload is %T, want object", decoded))
	}

	return &Payload{Raw: raw, Data: data}, nil
}

func isRedirect(status int) bool {
	switch status {
	case fasthttp.StatusMovedPermanently, fasthttp.StatusFound, fasthttp.StatusSeeOther,
		fasthttp.StatusTemporaryRedirect, fasthttp.StatusPermanentRedirect:
		return true
	}
	return false
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}
