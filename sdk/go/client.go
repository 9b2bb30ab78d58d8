package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"scorekit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the scorekit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// SubmitScore records a score and returns the stored entry with its id and timestamp.
func (c *Client) SubmitScore(ctx context.Context, sub ScoreSubmission) (core.ScoreEntry, error) {
	if sub.GameType == "" || sub.Difficulty == "" {
		return core.ScoreEntry{}, ErrMissingBoard
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return core.ScoreEntry{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leaderboard/submit", bytes.NewReader(body))
	if err != nil {
		return core.ScoreEntry{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Success bool            `json:"success"`
		Entry   core.ScoreEntry `json:"entry"`
	}
	if err := c.do(req, &out); err != nil {
		return core.ScoreEntry{}, err
	}
	if !out.Success || out.Entry.ID == "" {
		return core.ScoreEntry{}, errors.New("invalid response from server")
	}
	return out.Entry, nil
}

// GetLeaderboard fetches up to limit entries; limit <= 0 uses the server default.
func (c *Client) GetLeaderboard(ctx context.Context, gameType, difficulty string, limit int) (Leaderboard, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var lb Leaderboard
	if err := c.get(ctx, "/leaderboard/get", gameType, difficulty, q, &lb); err != nil {
		return Leaderboard{}, err
	}
	if lb.Entries == nil {
		lb.Entries = []core.ScoreEntry{}
	}
	return lb, nil
}

// CheckIfHighScore reports whether score would place within the top topN.
func (c *Client) CheckIfHighScore(ctx context.Context, gameType, difficulty string, score float64, topN int) (bool, error) {
	q := url.Values{}
	q.Set("score", strconv.FormatFloat(score, 'f', -1, 64))
	if topN > 0 {
		q.Set("top", strconv.Itoa(topN))
	}
	var out struct {
		Qualifies bool `json:"qualifies"`
	}
	if err := c.get(ctx, "/leaderboard/qualifies", gameType, difficulty, q, &out); err != nil {
		return false, err
	}
	return out.Qualifies, nil
}

// GetUserRank returns the player's 1-based rank, or found=false when the player
// has no retained entry.
func (c *Client) GetUserRank(ctx context.Context, gameType, difficulty, playerName string) (rank int, found bool, err error) {
	q := url.Values{}
	q.Set("player", playerName)
	var out struct {
		Rank  int  `json:"rank"`
		Found bool `json:"found"`
	}
	if err := c.get(ctx, "/leaderboard/rank", gameType, difficulty, q, &out); err != nil {
		return 0, false, err
	}
	return out.Rank, out.Found, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	var hs HealthStatus
	if err := c.do(req, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// Empty gameType and difficulty subscribe to every board.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, gameType, difficulty string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if gameType != "" {
		q.Set("game", gameType)
	}
	if difficulty != "" {
		q.Set("difficulty", difficulty)
	}
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) get(ctx context.Context, path, gameType, difficulty string, q url.Values, target any) error {
	if gameType == "" || difficulty == "" {
		return ErrMissingBoard
	}
	q.Set("game", gameType)
	q.Set("difficulty", difficulty)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	c.applyHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
