package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stayflow/internal/app/policies"
	"stayflow/internal/domain/shared/fault"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

// Client is a thin form-encoded Stripe API client implementing the card rail.
type Client struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
	client  *http.Client
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type paymentIntent struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	ClientSecret  string `json:"client_secret"`
	PaymentMethod string `json:"payment_method"`
	LatestCharge  string `json:"latest_charge"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

type apiErrorEnvelope struct {
	Error apiError `json:"error"`
}

// CollectAuthorization creates and confirms a payment intent for the pay-in
// total. A requires_action status surfaces the client secret so the caller
// can run the network challenge and re-submit.
func (c *Client) CollectAuthorization(ctx context.Context, req policies.CollectCardRequest) (policies.CardAuthorization, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount.Amount, 10))
	form.Set("currency", strings.ToLower(req.Amount.Currency))
	form.Set("confirm", "true")
	form.Set("description", req.Description)
	form.Set("metadata[transaction_id]", req.TransactionID)
	if req.CustomerRef != "" {
		form.Set("customer", req.CustomerRef)
	}
	switch req.Flow {
	case policies.CardFlowSaved:
		if req.InstrumentRef == "" {
			return policies.CardAuthorization{}, fault.New(fault.Validation, "instrument_required", "saved-instrument flow requires an instrument ref")
		}
		form.Set("payment_method", req.InstrumentRef)
	case policies.CardFlowOneTimeSave:
		form.Set("setup_future_usage", "off_session")
	}

	var intent paymentIntent
	if err := c.call(ctx, "/v1/payment_intents", form, "", &intent); err != nil {
		return policies.CardAuthorization{}, err
	}
	auth := policies.CardAuthorization{
		Kind:          domaintx.KindPaymentIntent,
		IntentRef:     intent.ID,
		ChargeRef:     intent.LatestCharge,
		InstrumentRef: intent.PaymentMethod,
	}
	switch intent.Status {
	case "succeeded":
		auth.Status = domaintx.AuthCaptured
	case "requires_action":
		auth.Status = domaintx.AuthRequiresAction
		auth.Continuation = intent.ClientSecret
	case "requires_capture":
		auth.Status = domaintx.AuthAuthorized
	default:
		return policies.CardAuthorization{}, fault.New(fault.ProviderRejected, intent.Status, "payment intent was not confirmed")
	}
	return auth, nil
}

// ChargeDeposit runs an off-session payment intent against a saved
// instrument. The idempotency key pins retries of the same deposit attempt
// to a single charge.
func (c *Client) ChargeDeposit(ctx context.Context, charge policies.DepositCharge) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(charge.Amount.Amount, 10))
	form.Set("currency", strings.ToLower(charge.Amount.Currency))
	form.Set("confirm", "true")
	form.Set("off_session", "true")
	form.Set("customer", charge.CustomerRef)
	form.Set("payment_method", charge.InstrumentRef)
	form.Set("metadata[transaction_id]", charge.TransactionID)
	form.Set("metadata[purpose]", "security_deposit")
	if charge.Token != "" {
		form.Set("metadata[verification_token]", charge.Token)
	}

	var intent paymentIntent
	if err := c.call(ctx, "/v1/payment_intents", form, charge.Key, &intent); err != nil {
		return "", err
	}
	if intent.Status != "succeeded" {
		return "", fault.New(fault.ProviderRejected, intent.Status, "deposit charge was not completed")
	}
	if intent.LatestCharge != "" {
		return intent.LatestCharge, nil
	}
	return intent.ID, nil
}

func (c *Client) Refund(ctx context.Context, chargeRef string, amount money.Money) error {
	form := url.Values{}
	form.Set("charge", chargeRef)
	form.Set("amount", strconv.FormatInt(amount.Amount, 10))
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.call(ctx, "/v1/refunds", form, "", &out); err != nil {
		return err
	}
	if out.Status == "failed" {
		return fault.New(fault.ProviderRejected, "refund_failed", "refund was rejected")
	}
	return nil
}

func (c *Client) ListSavedInstruments(ctx context.Context, customerRef string) ([]policies.SavedInstrument, error) {
	endpoint := fmt.Sprintf("%s/v1/payment_methods?customer=%s&type=card", c.BaseURL, url.QueryEscape(customerRef))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fault.Wrap(fault.Transient, "stripe_unreachable", "stripe request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}
	var out struct {
		Data []struct {
			ID   string `json:"id"`
			Card struct {
				Brand    string `json:"brand"`
				Last4    string `json:"last4"`
				ExpMonth int    `json:"exp_month"`
				ExpYear  int    `json:"exp_year"`
			} `json:"card"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	now := time.Now()
	instruments := make([]policies.SavedInstrument, 0, len(out.Data))
	for _, pm := range out.Data {
		expired := pm.Card.ExpYear < now.Year() ||
			(pm.Card.ExpYear == now.Year() && pm.Card.ExpMonth < int(now.Month()))
		instruments = append(instruments, policies.SavedInstrument{
			Ref:      pm.ID,
			Brand:    pm.Card.Brand,
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
			Expired:  expired,
		})
	}
	return instruments, nil
}

func (c *Client) call(ctx context.Context, path string, form url.Values, idempotencyKey string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fault.Wrap(fault.Transient, "stripe_timeout", "stripe request timed out", err)
		}
		return fault.Wrap(fault.Transient, "stripe_unreachable", "stripe request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if c.Logger != nil {
		c.Logger.Debug("stripe call", "path", path, "status", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

// decodeError maps Stripe's error body onto fault kinds the application
// branches on. Payout-setup codes pause the accept instead of failing it.
func decodeError(status int, body []byte) error {
	var env apiErrorEnvelope
	_ = json.Unmarshal(body, &env)
	apiErr := env.Error
	code := apiErr.Code
	if apiErr.DeclineCode != "" {
		code = apiErr.DeclineCode
	}
	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("stripe returned %d", status)
	}
	switch code {
	case "account_payouts_disabled", "charge_disabled_account":
		return fault.New(fault.PayoutSetupRequired, code, msg)
	case "card_declined", "expired_card", "incorrect_cvc", "insufficient_funds":
		return fault.New(fault.ProviderRejected, code, msg)
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return fault.New(fault.Transient, code, msg)
	}
	if apiErr.Type == "invalid_request_error" {
		return fault.New(fault.Validation, code, msg)
	}
	return fault.New(fault.ProviderRejected, code, msg)
}

var _ policies.CardRail = (*Client)(nil)
