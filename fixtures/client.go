package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	defaultTimeout  = 20 * time.Second
	maxPayloadBytes = 10 << 20
	authTokenHeader = "x-auth-token"
)

var (
	ErrFeedUnavailable = errors.New("fixture feed request failed")
	ErrFeedMalformed   = errors.New("fixture feed returned an unexpected payload")
)

// FeedError is returned for every failed feed call. StatusCode is 0 when no HTTP response
// was received.
type FeedError struct {
	StatusCode int
	Err        error
}

func (e *FeedError) Error() string {
	if e.StatusCode == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (upstream status %d)", e.Err, e.StatusCode)
}

func (e *FeedError) Unwrap() error { return e.Err }

var feedJSON = jsoniter.Config{UseNumber: true}.Froze()

type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client talks to the fixture feed. Every call is a single blocking request; retries are
// left to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      strings.TrimSpace(cfg.Token),
		logger:     logger,
	}
}

// TeamInfo is the decoded "team info" payload.
type TeamInfo struct {
	TeamName string
	Games    []Document
	Raw      []byte
}

// FetchTeamInfo loads the team info document and collects every game it contains.
func (c *Client) FetchTeamInfo(ctx context.Context, feedTeamID string) (*TeamInfo, error) {
	raw, payload, err := c.get(ctx, "/api/team/"+url.PathEscape(feedTeamID))
	if err != nil {
		return nil, err
	}

	info := &TeamInfo{Games: CollectGames(payload), Raw: raw}
	if m, ok := asMap(payload); ok {
		info.TeamName = Document(m).first([]string{"name", "teamName", "team.name", "team"})
	}
	c.logger.DebugContext(ctx, "fixture feed team info fetched",
		slog.String("feed_team_id", feedTeamID),
		slog.Int("games", len(info.Games)),
	)
	return info, nil
}

// FetchTeamTable loads the league table of the team's competition.
func (c *Client) FetchTeamTable(ctx context.Context, feedTeamID string) (*LeagueTable, error) {
	_, payload, err := c.get(ctx, "/api/team/table/"+url.PathEscape(feedTeamID))
	if err != nil {
		return nil, err
	}
	table, err := parseLeagueTable(payload)
	if err != nil {
		return nil, &FeedError{StatusCode: http.StatusOK, Err: err}
	}
	return table, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(authTokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &FeedError{Err: fmt.Errorf("%w: %v", ErrFeedUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, nil, &FeedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: reading body: %v", ErrFeedUnavailable, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "fixture feed returned non-success status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, nil, &FeedError{StatusCode: resp.StatusCode, Err: ErrFeedUnavailable}
	}

	var decoded any
	if err := feedJSON.Unmarshal(body, &decoded); err != nil {
		return nil, nil, &FeedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrFeedMalformed, err)}
	}
	payload, err := unwrapEnvelope(decoded)
	if err != nil {
		return nil, nil, &FeedError{StatusCode: resp.StatusCode, Err: err}
	}
	return body, payload, nil
}

// unwrapEnvelope accepts a bare object or array, or {"success": ..., "data": ...}.
func unwrapEnvelope(decoded any) (any, error) {
	switch p := decoded.(type) {
	case []any:
		return p, nil
	case map[string]any:
		if ok, present := p["success"].(bool); present && !ok {
			msg := Document(p).first([]string{"message", "error", "error.message"})
			if msg == "" {
				msg = "success=false"
			}
			return nil, fmt.Errorf("%w: %s", ErrFeedMalformed, msg)
		}
		if data, ok := p["data"]; ok {
			switch data.(type) {
			case map[string]any, []any:
				return data, nil
			}
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: expected object or array, got %T", ErrFeedMalformed, decoded)
	}
}
