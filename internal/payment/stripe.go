package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultAPIBase = "https://api.stripe.com"

// StripeClient speaks Stripe's form-encoded checkout session API over HTTPS.
type StripeClient struct {
	apiBase    string
	secretKey  string
	httpClient *http.Client
}

type StripeOption func(*StripeClient)

// WithAPIBase overrides the API host, used by tests.
func WithAPIBase(base string) StripeOption {
	return func(c *StripeClient) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

func WithHTTPClient(hc *http.Client) StripeOption {
	return func(c *StripeClient) {
		c.httpClient = hc
	}
}

func NewStripeClient(secretKey string, opts ...StripeOption) *StripeClient {
	c := &StripeClient{
		apiBase:    defaultAPIBase,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionResponse struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", item.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.ProductName)
		if item.ProductDescription != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.ProductDescription)
		}
		for j, img := range item.ProductImages {
			form.Set(fmt.Sprintf("%s[price_data][product_data][images][%d]", prefix, j), img)
		}
	}

	for i, country := range params.AllowedShippingCountries {
		form.Set(fmt.Sprintf("shipping_address_collection[allowed_countries][%d]", i), country)
	}

	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	return toSession(&resp), nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return toSession(&resp), nil
}

func toSession(resp *sessionResponse) *Session {
	return &Session{
		ID:            resp.ID,
		URL:           resp.URL,
		PaymentStatus: resp.PaymentStatus,
		AmountTotal:   resp.AmountTotal,
		CustomerEmail: resp.CustomerDetails.Email,
		Metadata:      resp.Metadata,
	}
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return fmt.Errorf("payment: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment: request to processor failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("payment: failed to read processor response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error.Message == "" {
			log.Error().Int("status", resp.StatusCode).Str("path", path).Msg("payment: processor returned unparseable error")
			return &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected response status %d", resp.StatusCode)}
		}
		return &Error{StatusCode: resp.StatusCode, Type: apiErr.Error.Type, Message: apiErr.Error.Message}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payment: failed to decode processor response: %w", err)
	}
	return nil
}
