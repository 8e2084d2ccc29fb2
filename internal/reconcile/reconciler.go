// Package reconcile folds asynchronous delivery-provider events back into
// the delivery state machine.
package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
)

// ErrMalformed marks payloads the boundary must reject with a 4xx.
var ErrMalformed = errors.New("malformed webhook payload")

// ProviderEvent is the parsed provider payload. Headers echoes back the
// custom headers set on the original send.
type ProviderEvent struct {
	Type      string            `json:"event"`
	MessageID string            `json:"message_id"`
	Timestamp int64             `json:"timestamp"`
	Headers   map[string]string `json:"headers"`
	Reason    string            `json:"reason,omitempty"`
}

// eventTypes maps provider event names onto state machine events. A
// complaint is handled as an unsubscribe.
var eventTypes = map[string]model.EmailEventType{
	"delivered":  model.EventDelivered,
	"opened":     model.EventOpened,
	"clicked":    model.EventClicked,
	"bounced":    model.EventBounced,
	"complained": model.EventUnsubscribed,
}

// Reconciler authenticates and applies webhook events. Duplicates and
// out-of-order arrivals need no special handling here; the monotonic
// upgrade rule in the machine absorbs them.
type Reconciler struct {
	machine          *delivery.Machine
	campaignContacts repository.CampaignContactsRepository
	sequences        repository.SequencesRepository
	signingKey       []byte
	log              *zap.Logger
}

func NewReconciler(
	machine *delivery.Machine,
	campaignContacts repository.CampaignContactsRepository,
	sequences repository.SequencesRepository,
	signingKey string,
	log *zap.Logger,
) *Reconciler {
	return &Reconciler{
		machine:          machine,
		campaignContacts: campaignContacts,
		sequences:        sequences,
		signingKey:       []byte(signingKey),
		log:              log,
	}
}

// VerifySignature checks the provider's HMAC-SHA256 hex signature over the
// raw body. Nothing is trusted before this passes.
func (r *Reconciler) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, r.signingKey)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Ingest parses one verified payload and routes it into the machine.
// Unknown identifiers are dropped with OutcomeUnknownTarget, never errors.
func (r *Reconciler) Ingest(ctx context.Context, body []byte) (model.EmailEventType, delivery.Outcome, error) {
	var pe ProviderEvent
	if err := json.Unmarshal(body, &pe); err != nil {
		return "", delivery.OutcomeStale, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	evType, ok := eventTypes[pe.Type]
	if !ok {
		return "", delivery.OutcomeStale, fmt.Errorf("%w: unknown event type %q", ErrMalformed, pe.Type)
	}

	ev := delivery.Event{
		Type:      evType,
		MessageID: pe.MessageID,
		Reason:    pe.Reason,
		Data:      map[string]any{"provider_event": pe.Type},
	}
	if pe.Timestamp > 0 {
		ev.OccurredAt = time.Unix(pe.Timestamp, 0)
	}

	// Prefer the identifiers echoed back as custom headers.
	if campaignID, contactID, ok := campaignIDs(pe.Headers); ok {
		out, err := r.machine.Apply(ctx, campaignID, contactID, ev)
		return evType, out, err
	}
	if id, ok := headerID(pe.Headers, "X-Sequence-Email-ID"); ok {
		out, err := r.machine.ApplySequence(ctx, id, ev)
		return evType, out, err
	}

	// Fall back to the provider message id.
	if pe.MessageID == "" {
		return evType, delivery.OutcomeStale, fmt.Errorf("%w: no identifiers", ErrMalformed)
	}
	if cc, err := r.campaignContacts.GetByMessageID(ctx, pe.MessageID); err == nil {
		out, err := r.machine.Apply(ctx, cc.CampaignID, cc.ContactID, ev)
		return evType, out, err
	} else if !errors.Is(err, delivery.ErrNotFound) {
		return evType, delivery.OutcomeStale, err
	}
	if se, err := r.sequences.GetSequenceEmailByMessageID(ctx, pe.MessageID); err == nil {
		out, err := r.machine.ApplySequence(ctx, se.ID, ev)
		return evType, out, err
	} else if !errors.Is(err, delivery.ErrNotFound) {
		return evType, delivery.OutcomeStale, err
	}

	r.log.Warn("webhook event for unknown message",
		zap.String("event", pe.Type),
		zap.String("message_id", pe.MessageID))
	return evType, delivery.OutcomeUnknownTarget, nil
}

func campaignIDs(headers map[string]string) (int64, int64, bool) {
	campaignID, ok := headerID(headers, "X-Campaign-ID")
	if !ok {
		return 0, 0, false
	}
	contactID, ok := headerID(headers, "X-Contact-ID")
	if !ok {
		return 0, 0, false
	}
	return campaignID, contactID, true
}

func headerID(headers map[string]string, key string) (int64, bool) {
	v, ok := headers[key]
	if !ok || v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
