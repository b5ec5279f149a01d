package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	stripeapi "github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient talks to the Stripe REST API through the stripe-go backend.
// Request bodies are built from Params so the recorded request is exactly
// what was sent.
type HTTPClient struct {
	apiKey  string
	backend stripeapi.Backend
}

// NewHTTPClient creates a client for baseURL (e.g. https://api.stripe.com).
// Network retries are left to the caller, which reuses the idempotency key.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, &stripeapi.BackendConfig{
		URL: stripeapi.String(baseURL),
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     leveledLogger{logger.With().Str("component", "stripe").Logger()},
	})
	return &HTTPClient{apiKey: apiKey, backend: backend}
}

func (c *HTTPClient) CreateCustomer(ctx context.Context, params Params, idempotencyKey string) (*Customer, error) {
	var out stripeapi.Customer
	if err := c.call(ctx, http.MethodPost, "/v1/customers", params, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &Customer{
		ID:       out.ID,
		Email:    out.Email,
		Created:  out.Created,
		Metadata: out.Metadata,
	}, nil
}

func (c *HTTPClient) CreateCharge(ctx context.Context, params Params, idempotencyKey string) (*Charge, error) {
	var out stripeapi.Charge
	if err := c.call(ctx, http.MethodPost, "/v1/charges", params, idempotencyKey, &out); err != nil {
		return nil, err
	}
	ch := &Charge{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: string(out.Currency),
		Captured: out.Captured,
		Status:   string(out.Status),
		Created:  out.Created,
	}
	if out.Customer != nil {
		ch.Customer = out.Customer.ID
	}
	return ch, nil
}

func (c *HTTPClient) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	var out stripeapi.Event
	if err := c.call(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(id), nil, "", &out); err != nil {
		return nil, err
	}
	ev := &Event{
		ID:      out.ID,
		Type:    string(out.Type),
		Created: out.Created,
	}
	if out.Data != nil {
		ev.Data.Object = out.Data.Raw
	}
	return ev, nil
}

func (c *HTTPClient) call(ctx context.Context, method, path string, params Params, idempotencyKey string, out stripeapi.LastResponseSetter) error {
	p := &stripeapi.Params{Context: ctx}
	if idempotencyKey != "" {
		p.IdempotencyKey = stripeapi.String(idempotencyKey)
	}
	addForm(p, "", params)

	if err := c.backend.Call(method, path, c.apiKey, p, out); err != nil {
		return fromAPIError(err)
	}
	return nil
}

// fromAPIError converts a stripe-go failure into an *Error. Anything that is
// not an API error response means the request did not complete.
func fromAPIError(err error) *Error {
	var apiErr *stripeapi.Error
	if !errors.As(err, &apiErr) {
		return &Error{Kind: KindAPIConnection, Message: "request failed", Err: err}
	}
	msg := apiErr.Msg
	if msg == "" {
		msg = http.StatusText(apiErr.HTTPStatusCode)
	}
	return &Error{
		Kind:       kindFor(apiErr.HTTPStatusCode, apiErr.Type),
		StatusCode: apiErr.HTTPStatusCode,
		Code:       string(apiErr.Code),
		Message:    msg,
		RequestID:  apiErr.RequestID,
	}
}

// addForm flattens params into Stripe's bracketed form keys (parent[child],
// list[0]) and adds them as extra parameters.
func addForm(p *stripeapi.Params, prefix string, value any) {
	switch v := value.(type) {
	case nil:
	case map[string]any:
		for k, item := range v {
			addForm(p, nestedKey(prefix, k), item)
		}
	case map[string]string:
		for k, s := range v {
			p.AddExtra(nestedKey(prefix, k), s)
		}
	case []any:
		for i, item := range v {
			addForm(p, prefix+"["+strconv.Itoa(i)+"]", item)
		}
	case string:
		p.AddExtra(prefix, v)
	case json.Number:
		p.AddExtra(prefix, v.String())
	case bool:
		p.AddExtra(prefix, strconv.FormatBool(v))
	case int:
		p.AddExtra(prefix, strconv.Itoa(v))
	case int64:
		p.AddExtra(prefix, strconv.FormatInt(v, 10))
	case float64:
		p.AddExtra(prefix, strconv.FormatFloat(v, 'f', -1, 64))
	default:
		p.AddExtra(prefix, fmt.Sprint(v))
	}
}

func nestedKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "[" + key + "]"
}

// leveledLogger routes stripe-go's own logging through zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.log.Warn().Msgf(format, v...) }
