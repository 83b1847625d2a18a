package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"digitalstore/internal/domain"
)

// StripeGatewayID identifies the store's only configured payment gateway.
const StripeGatewayID = "stripe"

// Gateway is the remote payment processor surface the payment service needs.
type Gateway interface {
	ID() string
	Mode() domain.GatewayMode
	CreateCustomer(ctx context.Context, email, description string) (*RemoteCustomer, error)
	RetrieveCustomer(ctx context.Context, id string) (*RemoteCustomer, error)
	RetrieveToken(ctx context.Context, id string) (*RemoteToken, error)
	CreateCard(ctx context.Context, customerID, source string) (*RemoteCard, error)
	DetachCard(ctx context.Context, customerID, cardID string) error
	CreateCharge(ctx context.Context, in ChargeInput) (*RemoteCharge, error)
	CaptureCharge(ctx context.Context, id string, amountMinor int64) (*RemoteCharge, error)
	RetrieveCharge(ctx context.Context, id string) (*RemoteCharge, error)
	CreateRefund(ctx context.Context, chargeID string, amountMinor int64) (*RemoteRefund, error)
}

// RemoteCustomer is the gateway's record for a store customer.
type RemoteCustomer struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DefaultSource string `json:"default_source"`
}

// RemoteCard is a tokenized card stored at the gateway.
type RemoteCard struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// RemoteToken is a single-use card token produced by the storefront.
type RemoteToken struct {
	ID       string      `json:"id"`
	Used     bool        `json:"used"`
	Livemode bool        `json:"livemode"`
	Card     *RemoteCard `json:"card"`
}

// RemoteCharge is a charge attempt at the gateway. Amounts are in the
// currency's minor unit.
type RemoteCharge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Captured bool   `json:"captured"`
}

// RemoteRefund is a refund recorded at the gateway.
type RemoteRefund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// ChargeInput describes a charge to create. Exactly one of CustomerID or
// Source identifies what to charge; with both set the source must belong to
// the customer.
type ChargeInput struct {
	CustomerID  string
	Source      string
	AmountMinor int64
	Currency    string
	Capture     bool
	Description string
}

// StripeConfig configures the Stripe-backed gateway client.
type StripeConfig struct {
	SecretKey string
	BaseURL   string
	Mode      domain.GatewayMode
	Timeout   time.Duration
}

// StripeClient talks to the Stripe HTTP API using form-encoded requests
// authenticated with the account's secret key.
type StripeClient struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	mode       domain.GatewayMode
	logger     *log.Logger
}

func NewStripeClient(cfg StripeConfig, logger *log.Logger) *StripeClient {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	mode := cfg.Mode
	if mode == "" {
		mode = domain.GatewayModeTest
	}
	return &StripeClient{
		httpClient: &http.Client{Timeout: timeout},
		secretKey:  cfg.SecretKey,
		baseURL:    baseURL,
		mode:       mode,
		logger:     logger,
	}
}

func (c *StripeClient) ID() string { return StripeGatewayID }

func (c *StripeClient) Mode() domain.GatewayMode { return c.mode }

func (c *StripeClient) CreateCustomer(ctx context.Context, email, description string) (*RemoteCustomer, error) {
	form := url.Values{}
	form.Set("email", email)
	if description != "" {
		form.Set("description", description)
	}
	var out RemoteCustomer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) RetrieveCustomer(ctx context.Context, id string) (*RemoteCustomer, error) {
	var out RemoteCustomer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) RetrieveToken(ctx context.Context, id string) (*RemoteToken, error) {
	var out RemoteToken
	if err := c.do(ctx, http.MethodGet, "/tokens/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreateCard(ctx context.Context, customerID, source string) (*RemoteCard, error) {
	form := url.Values{}
	form.Set("source", source)
	var out RemoteCard
	if err := c.do(ctx, http.MethodPost, "/customers/"+url.PathEscape(customerID)+"/sources", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CustomerCards lists the cards attached to a gateway customer.
func (c *StripeClient) CustomerCards(ctx context.Context, customerID string) ([]RemoteCard, error) {
	var out struct {
		Data []RemoteCard `json:"data"`
	}
	path := "/customers/" + url.PathEscape(customerID) + "/sources?object=card"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *StripeClient) DetachCard(ctx context.Context, customerID, cardID string) error {
	path := "/customers/" + url.PathEscape(customerID) + "/sources/" + url.PathEscape(cardID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *StripeClient) CreateCharge(ctx context.Context, in ChargeInput) (*RemoteCharge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.AmountMinor, 10))
	form.Set("currency", strings.ToLower(in.Currency))
	form.Set("capture", strconv.FormatBool(in.Capture))
	if in.CustomerID != "" {
		form.Set("customer", in.CustomerID)
	}
	if in.Source != "" {
		form.Set("source", in.Source)
	}
	if in.Description != "" {
		form.Set("description", in.Description)
	}
	var out RemoteCharge
	if err := c.do(ctx, http.MethodPost, "/charges", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CaptureCharge(ctx context.Context, id string, amountMinor int64) (*RemoteCharge, error) {
	form := url.Values{}
	if amountMinor > 0 {
		form.Set("amount", strconv.FormatInt(amountMinor, 10))
	}
	var out RemoteCharge
	if err := c.do(ctx, http.MethodPost, "/charges/"+url.PathEscape(id)+"/capture", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) RetrieveCharge(ctx context.Context, id string) (*RemoteCharge, error) {
	var out RemoteCharge
	if err := c.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreateRefund(ctx context.Context, chargeID string, amountMinor int64) (*RemoteRefund, error) {
	form := url.Values{}
	form.Set("charge", chargeID)
	if amountMinor > 0 {
		form.Set("amount", strconv.FormatInt(amountMinor, 10))
	}
	var out RemoteRefund
	if err := c.do(ctx, http.MethodPost, "/refunds", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type stripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.secretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("stripe: %s %s error=%v", method, path, err)
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr stripeErrorResponse
		_ = json.Unmarshal(payload, &apiErr)
		c.logger.Printf("stripe: %s %s status=%d type=%s code=%s", method, path, resp.StatusCode, apiErr.Error.Type, apiErr.Error.Code)
		if apiErr.Error.Type == "card_error" {
			return fmt.Errorf("%w: %s", domain.ErrHardDecline, apiErr.Error.Code)
		}
		return fmt.Errorf("%w: status %d", domain.ErrGateway, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", domain.ErrGateway, err)
	}
	return nil
}
