// Package payment integrates external checkout gateways. Each gateway
// initiates a hosted checkout and verifies the webhook signatures it
// sends back on settlement.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"engage-rewards-service/internal/model"
)

// ErrBadSignature is returned when a webhook signature does not verify.
var ErrBadSignature = errors.New("webhook signature verification failed")

// InitRequest describes a checkout to start.
type InitRequest struct {
	Email       string
	AmountCents int64
	Currency    string
	Reference   string
	CallbackURL string
}

// InitResult carries the hosted checkout URL the user is sent to.
type InitResult struct {
	RedirectURL string
	Reference   string
}

// Initiator starts a hosted checkout with an external gateway.
type Initiator interface {
	Gateway() model.PaymentGateway
	Initiate(ctx context.Context, req InitRequest) (*InitResult, error)
	VerifyWebhook(signature string, body []byte) error
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// Paystack talks to the Paystack transaction API.
type Paystack struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewPaystack creates a Paystack client. baseURL defaults to the
// public API when empty.
func NewPaystack(secretKey, baseURL string, httpClient *http.Client) *Paystack {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &Paystack{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: defaultClient(httpClient),
	}
}

// Gateway identifies this client.
func (p *Paystack) Gateway() model.PaymentGateway {
	return model.GatewayPaystack
}

type paystackInitPayload struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initiate starts a Paystack checkout. Paystack takes amounts in the
// currency's subunit, which matches AmountCents directly.
func (p *Paystack) Initiate(ctx context.Context, req InitRequest) (*InitResult, error) {
	payload, err := json.Marshal(paystackInitPayload{
		Email:       req.Email,
		Amount:      req.AmountCents,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode paystack request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build paystack request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call paystack: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read paystack response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paystack returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed paystackInitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode paystack response: %w", err)
	}
	if !parsed.Status || parsed.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack rejected transaction: %s", parsed.Message)
	}

	return &InitResult{
		RedirectURL: parsed.Data.AuthorizationURL,
		Reference:   parsed.Data.Reference,
	}, nil
}

// VerifyWebhook checks the x-paystack-signature header, an HMAC-SHA512
// of the raw body keyed with the secret key.
func (p *Paystack) VerifyWebhook(signature string, body []byte) error {
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrBadSignature
	}
	return nil
}

// Stripe talks to the Stripe Checkout Sessions API.
type Stripe struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// NewStripe creates a Stripe client. baseURL defaults to the public
// API when empty.
func NewStripe(secretKey, webhookSecret, baseURL string, httpClient *http.Client) *Stripe {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Stripe{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    defaultClient(httpClient),
	}
}

// Gateway identifies this client.
func (s *Stripe) Gateway() model.PaymentGateway {
	return model.GatewayStripe
}

type stripeSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Initiate creates a Stripe Checkout session for a one-off payment.
func (s *Stripe) Initiate(ctx context.Context, req InitRequest) (*InitResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.Reference)
	form.Set("customer_email", req.Email)
	form.Set("success_url", req.CallbackURL)
	form.Set("cancel_url", req.CallbackURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Wallet top-up")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build stripe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call stripe: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stripe returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed stripeSessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode stripe response: %w", err)
	}
	if parsed.URL == "" {
		return nil, errors.New("stripe session missing checkout url")
	}

	return &InitResult{
		RedirectURL: parsed.URL,
		Reference:   req.Reference,
	}, nil
}

// VerifyWebhook checks a Stripe-Signature header: a timestamp and one
// or more v1 HMAC-SHA256 signatures over "<timestamp>.<body>".
func (s *Stripe) VerifyWebhook(signature string, body []byte) error {
	var timestamp string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrBadSignature
}
