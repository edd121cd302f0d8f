package paymentsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/store"
)

type stripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
	logger        core.Logger
}

var _ store.PaymentGateway = (*stripeGateway)(nil)

func NewStripeGateway(conf *core.Config, logger core.Logger) store.PaymentGateway {
	api := &client.API{}
	api.Init(conf.Stripe.SecretKey, nil)
	return &stripeGateway{
		api:           api,
		webhookSecret: conf.Stripe.WebhookSecret,
		currency:      conf.Stripe.Currency,
		logger:        logger,
	}
}

func (gw *stripeGateway) prepare(req store.CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(req.CartID),
	}
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(l.Name)}
		if l.Description != "" {
			product.Description = stripe.String(l.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(gw.currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}
	params.AddMetadata("cart_id", req.CartID)
	params.AddMetadata("user_id", req.UserID)
	return params
}

func (gw *stripeGateway) CreateCheckoutSession(ctx context.Context, req store.CheckoutRequest) (store.CheckoutSession, error) {
	params := gw.prepare(req)
	params.Context = ctx

	s, err := gw.api.CheckoutSessions.New(params)
	if err != nil {
		return store.CheckoutSession{}, errors.Wrap(err, "stripe: creating checkout session")
	}
	return store.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (gw *stripeGateway) ParseEvent(payload []byte, signature string) (store.PaymentEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, gw.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return store.PaymentEvent{}, errors.Wrap(store.ErrInvalidEvent, err.Error())
	}

	var typ store.EventType
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		typ = store.EventCheckoutCompleted
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		typ = store.EventCheckoutExpired
	default:
		return store.PaymentEvent{Type: store.EventIgnored}, nil
	}

	var s stripe.CheckoutSession
	if err = json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return store.PaymentEvent{}, errors.Wrap(store.ErrInvalidEvent, err.Error())
	}
	// completed sessions with delayed payment methods are settled by async_payment_succeeded
	if evt.Type == stripe.EventTypeCheckoutSessionCompleted && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		gw.logger.Info("checkout completed, awaiting payment", map[string]interface{}{"session_id": s.ID})
		return store.PaymentEvent{Type: store.EventIgnored, SessionID: s.ID}, nil
	}

	res := store.PaymentEvent{Type: typ, SessionID: s.ID, CartID: s.ClientReferenceID, AmountTotal: s.AmountTotal}
	if res.CartID == "" && s.Metadata != nil {
		res.CartID = s.Metadata["cart_id"]
	}
	if s.PaymentIntent != nil {
		res.PaymentRef = s.PaymentIntent.ID
	}
	return res, nil
}
