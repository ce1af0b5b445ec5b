package practicum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"hwbot/internal/homework"
)

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 512
)

type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client fetches homework statuses. Each Fetch is a single attempt;
// retry timing belongs to the poll loop.
type Client struct {
	http     *resty.Client
	endpoint string
	token    string
}

func New(cfg Config) (*Client, error) {
	return NewWithClient(cfg, resty.New())
}

func NewWithClient(cfg Config, client *resty.Client) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid practicum endpoint: %w", err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("practicum token is empty")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &Client{http: client, endpoint: endpoint, token: cfg.Token}, nil
}

// Fetch requests statuses changed since cursor (unix seconds).
//
// Errors: *homework.TransportError when no response was received,
// *homework.BadStatusError for non-200 answers, and a wrapped
// homework.ErrMalformedResponse when the body is not a JSON object.
func (c *Client) Fetch(ctx context.Context, cursor int64) (homework.RawResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "OAuth "+c.token).
		SetHeader("Accept", "application/json").
		SetQueryParam("from_date", strconv.FormatInt(cursor, 10)).
		Get(c.endpoint)
	if err != nil {
		return nil, &homework.TransportError{Cause: err}
	}
	if resp == nil {
		return nil, &homework.TransportError{Cause: fmt.Errorf("empty response")}
	}

	if code := resp.StatusCode(); code != http.StatusOK {
		return nil, &homework.BadStatusError{Code: code, Body: truncate(strings.TrimSpace(resp.String()), maxErrorBody)}
	}

	var raw homework.RawResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", homework.ErrMalformedResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not an object", homework.ErrMalformedResponse)
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
