package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const authorizePath = "/v1/authorizations"

var (
	// ErrGatewayUnavailable is returned when the gateway cannot be reached
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRequestFailed is returned for non-2xx gateway answers
	ErrGatewayRequestFailed = errors.New("payment gateway request failed")
)

type authorizeRequest struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	DocumentNo string          `json:"document_no"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Tender     string          `json:"tender"`
	PartnerID  uuid.UUID       `json:"business_partner_id"`
}

type authorizeResponse struct {
	Approved          bool   `json:"approved"`
	AuthorizationCode string `json:"authorization_code"`
	DeclineReason     string `json:"decline_reason"`
}

// HTTPGateway authorizes online tenders against a JSON HTTP endpoint. Calls are
// throttled with a token bucket shared by every caller of the gateway.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HTTPGatewayOption configures an HTTPGateway
type HTTPGatewayOption func(*HTTPGateway)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) HTTPGatewayOption {
	return func(g *HTTPGateway) {
		g.httpClient = client
	}
}

// NewHTTPGateway creates a gateway client from cfg
func NewHTTPGateway(cfg config.GatewayConfig, opts ...HTTPGatewayOption) (*HTTPGateway, error) {
	if cfg.URL == "" {
		return nil, errors.New("gateway.url is required")
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g := &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Authorize implements finance.PaymentGateway
func (g *HTTPGateway) Authorize(ctx context.Context, p *finance.Payment) (*finance.AuthorizationResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway rate limit: %w", err)
	}

	body, err := json.Marshal(authorizeRequest{
		PaymentID:  p.ID,
		DocumentNo: p.DocumentNo,
		Amount:     p.PayAmount,
		Currency:   p.Currency.String(),
		Tender:     p.TenderKind.String(),
		PartnerID:  p.BusinessPartnerID,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+authorizePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.ID.String())
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	var out authorizeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("gateway: failed to decode response: %w", err)
	}
	return &finance.AuthorizationResult{
		Approved:          out.Approved,
		AuthorizationCode: out.AuthorizationCode,
		DeclineReason:     out.DeclineReason,
	}, nil
}

// Ensure HTTPGateway implements PaymentGateway
var _ finance.PaymentGateway = (*HTTPGateway)(nil)
