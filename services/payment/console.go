package paymentsvc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/store"
)

// ConsoleGateway fakes the payment provider for local runs & tests.
// Checkout sessions are logged; events are JSON payloads signed with the app secret key.
type ConsoleGateway struct {
	secret        []byte
	disableOutput bool
	logger        core.Logger
}

// ConsoleEvent is the payload accepted by ConsoleGateway.ParseEvent.
type ConsoleEvent struct {
	Type        store.EventType `json:"type"`
	SessionID   string          `json:"session_id"`
	CartID      string          `json:"cart_id"`
	PaymentRef  string          `json:"payment_ref"`
	AmountTotal int64           `json:"amount_total"`
}

var _ store.PaymentGateway = (*ConsoleGateway)(nil)

func NewConsoleGateway(conf *core.Config, logger core.Logger) *ConsoleGateway {
	return &ConsoleGateway{secret: []byte(conf.SecretKey), disableOutput: conf.TestMode, logger: logger}
}

func (gw *ConsoleGateway) CreateCheckoutSession(ctx context.Context, req store.CheckoutRequest) (store.CheckoutSession, error) {
	id := "cs_console_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if !gw.disableOutput {
		var total int64
		for _, l := range req.Lines {
			total += l.UnitAmount * int64(l.Quantity)
		}
		gw.logger.Info(fmt.Sprintf("checkout session %s: cart %s, %d line(s), total %s", id, req.CartID, len(req.Lines), store.FormatCents(total)))
	}
	return store.CheckoutSession{
		ID:  id,
		URL: strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", id),
	}, nil
}

// Sign returns the signature expected for payload.
func (gw *ConsoleGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, gw.secret)
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedEvent encodes evt & signs it.
func (gw *ConsoleGateway) SignedEvent(evt ConsoleEvent) ([]byte, string) {
	payload, _ := json.Marshal(evt)
	return payload, gw.Sign(payload)
}

func (gw *ConsoleGateway) ParseEvent(payload []byte, signature string) (store.PaymentEvent, error) {
	if !hmac.Equal([]byte(gw.Sign(payload)), []byte(signature)) {
		return store.PaymentEvent{}, store.ErrInvalidEvent
	}
	var evt ConsoleEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return store.PaymentEvent{}, errors.Wrap(store.ErrInvalidEvent, err.Error())
	}

	res := store.PaymentEvent{
		Type:        evt.Type,
		SessionID:   evt.SessionID,
		CartID:      evt.CartID,
		PaymentRef:  evt.PaymentRef,
		AmountTotal: evt.AmountTotal,
	}
	switch evt.Type {
	case store.EventCheckoutCompleted, store.EventCheckoutExpired:
	default:
		res.Type = store.EventIgnored
	}
	return res, nil
}
