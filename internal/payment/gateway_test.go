package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engage-rewards-service/internal/model"
)

func TestPaystack_Initiate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))

		var payload paystackInitPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "user@example.com", payload.Email)
		assert.Equal(t, int64(500000), payload.Amount)
		assert.Equal(t, "ref-123", payload.Reference)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/xyz","reference":%q}}`, payload.Reference)
	}))
	defer server.Close()

	client := NewPaystack("sk_test_abc", server.URL, server.Client())
	assert.Equal(t, model.GatewayPaystack, client.Gateway())

	result, err := client.Initiate(context.Background(), InitRequest{
		Email:       "user@example.com",
		AmountCents: 500000,
		Currency:    "NGN",
		Reference:   "ref-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/xyz", result.RedirectURL)
	assert.Equal(t, "ref-123", result.Reference)
}

func TestPaystack_InitiateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	}))
	defer server.Close()

	client := NewPaystack("sk_test_bad", server.URL, server.Client())

	_, err := client.Initiate(context.Background(), InitRequest{Email: "user@example.com", AmountCents: 100, Reference: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestPaystack_InitiateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewPaystack("sk_test_abc", server.URL, server.Client())

	_, err := client.Initiate(context.Background(), InitRequest{Email: "user@example.com", AmountCents: 100, Reference: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestPaystack_VerifyWebhook(t *testing.T) {
	client := NewPaystack("sk_test_abc", "", nil)
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-123"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_abc"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, client.VerifyWebhook(signature, body))
	assert.ErrorIs(t, client.VerifyWebhook(signature, []byte(`tampered`)), ErrBadSignature)
	assert.ErrorIs(t, client.VerifyWebhook("deadbeef", body), ErrBadSignature)
}

func TestStripe_Initiate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_live_abc", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "ref-456", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "2500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","url":"https://checkout.stripe.com/pay/cs_test_1"}`)
	}))
	defer server.Close()

	client := NewStripe("sk_live_abc", "whsec_x", server.URL, server.Client())
	assert.Equal(t, model.GatewayStripe, client.Gateway())

	result, err := client.Initiate(context.Background(), InitRequest{
		Email:       "user@example.com",
		AmountCents: 2500,
		Currency:    "USD",
		Reference:   "ref-456",
		CallbackURL: "https://app.example.com/wallet",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", result.RedirectURL)
	assert.Equal(t, "ref-456", result.Reference)
}

func TestStripe_VerifyWebhook(t *testing.T) {
	client := NewStripe("sk_live_abc", "whsec_secret", "", nil)
	body := []byte(`{"type":"checkout.session.completed"}`)

	mac := hmac.New(sha256.New, []byte("whsec_secret"))
	mac.Write([]byte("1700000000."))
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		signature string
		wantErr   bool
	}{
		{name: "valid signature", signature: "t=1700000000,v1=" + good, wantErr: false},
		{name: "valid among multiple candidates", signature: "t=1700000000,v1=deadbeef,v1=" + good, wantErr: false},
		{name: "wrong signature", signature: "t=1700000000,v1=deadbeef", wantErr: true},
		{name: "missing timestamp", signature: "v1=" + good, wantErr: true},
		{name: "empty header", signature: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.VerifyWebhook(tt.signature, body)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
