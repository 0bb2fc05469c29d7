package trading

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultPortalURL is the pumpportal local-signing trade endpoint.
const DefaultPortalURL = "https://pumpportal.fun/api/trade-local"

// ErrEmptyResponse is returned when the trade service answers 2xx with no body.
var ErrEmptyResponse = errors.New("empty response from trade service")

// HTTPStatusError is returned for non-2xx responses from the trade service.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("trade service status %d: %s", e.StatusCode, e.Body)
}

// TradeForm is one trade-construction request.
type TradeForm struct {
	PublicKey        string
	Action           string
	Mint             string
	Amount           string // SOL amount, token amount, or a percentage like "100%"
	DenominatedInSol bool
	SlippagePct      float64
	PriorityFeeSol   float64
	Pool             string
}

// Values encodes the form fields the service expects.
func (f TradeForm) Values() url.Values {
	v := url.Values{}
	v.Set("publicKey", f.PublicKey)
	v.Set("action", f.Action)
	v.Set("mint", f.Mint)
	v.Set("amount", f.Amount)
	v.Set("denominatedInSol", strconv.FormatBool(f.DenominatedInSol))
	v.Set("slippage", strconv.FormatFloat(f.SlippagePct, 'f', -1, 64))
	v.Set("priorityFee", strconv.FormatFloat(f.PriorityFeeSol, 'f', -1, 64))
	v.Set("pool", f.Pool)
	return v
}

// TemplateBuilder builds unsigned transaction templates.
type TemplateBuilder interface {
	BuildTransaction(ctx context.Context, form TradeForm) ([]byte, error)
}

// PortalClient posts trade forms to the trade-construction service.
type PortalClient struct {
	endpoint string
	client   *http.Client
}

// PortalOption configures PortalClient.
type PortalOption func(*PortalClient)

// WithPortalHTTPClient sets custom http.Client.
func WithPortalHTTPClient(client *http.Client) PortalOption {
	return func(c *PortalClient) {
		c.client = client
	}
}

// WithPortalTimeout sets HTTP client timeout.
func WithPortalTimeout(d time.Duration) PortalOption {
	return func(c *PortalClient) {
		c.client.Timeout = d
	}
}

// NewPortalClient creates a trade-construction client. An empty endpoint uses DefaultPortalURL.
func NewPortalClient(endpoint string, opts ...PortalOption) *PortalClient {
	if endpoint == "" {
		endpoint = DefaultPortalURL
	}
	c := &PortalClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// maxTemplateSize bounds the response body; Solana transactions are at most 1232 bytes.
const maxTemplateSize = 64 << 10

// BuildTransaction requests an unsigned transaction template.
func (c *PortalClient) BuildTransaction(ctx context.Context, form TradeForm) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Values().Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Compile-time interface check.
var _ TemplateBuilder = (*PortalClient)(nil)
