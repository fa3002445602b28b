package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeProvider implements Provider against the Stripe API. It holds an
// explicitly constructed client with process-scoped lifetime rather than
// the package-level stripe globals.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe-backed provider
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeProvider{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession opens a hosted Stripe Checkout session for a
// single course priced in minor units.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(params.Name),
						Description: stripe.String(params.Description),
					},
					UnitAmount: stripe.Int64(params.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:    stripe.String(params.SuccessURL),
		CancelURL:     stripe.String(params.CancelURL),
		CustomerEmail: stripe.String(params.CustomerEmail),
	}
	sessionParams.Context = ctx
	sessionParams.AddMetadata(MetadataCourseID, params.CourseID)
	sessionParams.AddMetadata(MetadataAccountID, params.AccountID)

	sess, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session creation failed: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseEvent verifies the Stripe-Signature header against the signing
// secret, then maps completed-checkout events into a CompletedSession.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	parsed := &Event{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if event.Type == stripe.EventTypeCheckoutSessionCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
		}

		parsed.Session = &CompletedSession{
			SessionID:   sess.ID,
			CourseID:    sess.Metadata[MetadataCourseID],
			AccountID:   sess.Metadata[MetadataAccountID],
			AmountTotal: sess.AmountTotal,
		}
	}

	return parsed, nil
}
