package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

const StatusSucceeded = string(stripe.PaymentIntentStatusSucceeded)

// Intent is the subset of a payment intent the order flow reads.
type Intent struct {
	ID           string
	Status       string
	Amount       int64
	Currency     string
	ClientSecret string
}

// StripeClient wraps the stripe-go payment intents client with its own
// backend, so nothing touches the package-level stripe.Key.
type StripeClient struct {
	intents paymentintent.Client
}

type Options struct {
	// BaseURL overrides the API host, e.g. for a local mock.
	BaseURL    string
	MaxRetries int64
	Logger     *slog.Logger
}

func NewStripeClient(secretKey string, opts Options) *StripeClient {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		MaxNetworkRetries: stripe.Int64(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(opts.BaseURL, "/"))
	}
	if opts.Logger != nil {
		cfg.LeveledLogger = slogLogger{l: opts.Logger}
	}
	return &StripeClient{intents: paymentintent.Client{
		B:   stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Key: secretKey,
	}}
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, errors.New("payment: empty intent id")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := c.intents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve intent: %w", err)
	}
	return intentFrom(pi), nil
}

func (c *StripeClient) CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	if amount <= 0 {
		return nil, errors.New("payment: amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("company", "E-Learning")
	pi, err := c.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}
	return intentFrom(pi), nil
}

func intentFrom(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}
}

// slogLogger routes stripe-go's leveled logging into slog.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debugf(format string, v ...any) {
	s.l.Debug(fmt.Sprintf(format, v...))
}

func (s slogLogger) Infof(format string, v ...any) {
	s.l.Info(fmt.Sprintf(format, v...))
}

func (s slogLogger) Warnf(format string, v ...any) {
	s.l.Warn(fmt.Sprintf(format, v...))
}

func (s slogLogger) Errorf(format string, v ...any) {
	s.l.Error(fmt.Sprintf(format, v...))
}
