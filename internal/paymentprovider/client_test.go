package paymentprovider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/paymentprovider"
)

func TestClient_CreateCheckoutSession(t *testing.T) {
	tests := []struct {
		name       string
		req        paymentprovider.CheckoutRequest
		status     int
		body       string
		wantMode   string
		wantURL    string
		wantErr    error
		noRequests bool
	}{
		{
			name:     "one time pack",
			req:      paymentprovider.CheckoutRequest{Plan: "5h", PriceID: "price_5h", UserID: "u1"},
			status:   http.StatusOK,
			body:     `{"id":"cs_1","url":"https://checkout.example/cs_1","mode":"payment"}`,
			wantMode: paymentprovider.ModePayment,
			wantURL:  "https://checkout.example/cs_1",
		},
		{
			name:     "pass is a subscription",
			req:      paymentprovider.CheckoutRequest{Plan: "pass", PriceID: "price_pass", UserID: "u1"},
			status:   http.StatusOK,
			body:     `{"id":"cs_2","url":"https://checkout.example/cs_2","mode":"subscription"}`,
			wantMode: paymentprovider.ModeSubscription,
			wantURL:  "https://checkout.example/cs_2",
		},
		{
			name:       "missing price",
			req:        paymentprovider.CheckoutRequest{Plan: "5h", UserID: "u1"},
			wantErr:    apperr.ErrInvalidArgument,
			noRequests: true,
		},
		{
			name:     "provider rejects request",
			req:      paymentprovider.CheckoutRequest{Plan: "5h", PriceID: "price_bad", UserID: "u1"},
			status:   http.StatusBadRequest,
			body:     `{"error":{"type":"invalid_request_error","message":"No such price"}}`,
			wantMode: paymentprovider.ModePayment,
			wantErr:  apperr.ErrInvalidArgument,
		},
		{
			name:     "provider outage",
			req:      paymentprovider.CheckoutRequest{Plan: "5h", PriceID: "price_5h", UserID: "u1"},
			status:   http.StatusServiceUnavailable,
			body:     `oops`,
			wantMode: paymentprovider.ModePayment,
			wantErr:  apperr.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
				assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
				assert.NoError(t, r.ParseForm())

				assert.Equal(t, tt.wantMode, r.PostForm.Get("mode"))
				assert.Equal(t, tt.req.PriceID, r.PostForm.Get("line_items[0][price]"))
				assert.Equal(t, "1", r.PostForm.Get("line_items[0][quantity]"))
				assert.Equal(t, "https://site.example?purchase=success", r.PostForm.Get("success_url"))
				assert.Equal(t, "https://site.example?purchase=cancel", r.PostForm.Get("cancel_url"))
				assert.Equal(t, tt.req.UserID, r.PostForm.Get("client_reference_id"))
				assert.Equal(t, tt.req.Plan, r.PostForm.Get("metadata[plan]"))
				assert.Equal(t, tt.req.UserID, r.PostForm.Get("metadata[user_id]"))
				if tt.wantMode == paymentprovider.ModeSubscription {
					assert.Equal(t, tt.req.UserID, r.PostForm.Get("subscription_data[metadata][user_id]"))
				} else {
					assert.Empty(t, r.PostForm.Get("subscription_data[metadata][user_id]"))
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := paymentprovider.NewClient(srv.URL, "sk_test", "https://site.example")
			session, err := client.CreateCheckoutSession(context.Background(), tt.req)

			if tt.noRequests {
				assert.Zero(t, requests)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, session.URL)
		})
	}
}

func TestClient_CreateCheckoutSession_NoSecret(t *testing.T) {
	client := paymentprovider.NewClient("", "", "https://site.example")
	_, err := client.CreateCheckoutSession(context.Background(), paymentprovider.CheckoutRequest{Plan: "1h", PriceID: "p", UserID: "u"})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
