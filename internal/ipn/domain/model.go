package domain

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Payload is the flat key/value view of one notification body. PayPal sends
// urlencoded form data; only the first value per key is meaningful.
type Payload map[string]string

// ParsePayload decodes a raw urlencoded notification body.
func ParsePayload(rawBody string) (Payload, error) {
	values, err := url.ParseQuery(rawBody)
	if err != nil {
		return nil, err
	}
	payload := make(Payload, len(values))
	for key := range values {
		payload[key] = values.Get(key)
	}
	return payload, nil
}

func (p Payload) Get(key string) string {
	return p[key]
}

func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

const (
	// PaymentStatusCompleted is the only payment status that triggers
	// inventory side effects.
	PaymentStatusCompleted = "Completed"

	// SaleSubtypeTabCheckout marks a sale whose inventory was already
	// deducted when the items were added to the buyer's tab; the
	// notification is then a reconciliation signal only.
	SaleSubtypeTabCheckout = "tab_checkout"

	// SaleSubtypeUnknown is assumed when the custom field carries no
	// subtype.
	SaleSubtypeUnknown = "unknown"
)

// AcceptedTransactionTypes are the txn_type values this listener handles. An
// absent txn_type is accepted for senders that omit it.
var AcceptedTransactionTypes = []string{"cart", "web_accept"}

// Transaction is the typed view over a notification payload.
type Transaction struct {
	TransactionID   string
	TrackingID      string
	PaymentStatus   string
	TransactionType string
	Currency        string
	// ReceiverCandidates are the payload fields that may carry the selling
	// account's identity; any one matching the configured business id
	// satisfies the receiver check.
	ReceiverCandidates []string
	PayerEmail         string
	PayerName          string
	// BuyerID is recovered from the custom field: the decoded uid when the
	// field is JSON, otherwise the raw field value.
	BuyerID string
	// SaleSubtype is the decoded type tag from the custom field, or
	// SaleSubtypeUnknown.
	SaleSubtype string
}

// TransactionFromPayload derives the typed transaction view.
func TransactionFromPayload(p Payload) Transaction {
	custom := ParseCustomField(p.Get("custom"))
	return Transaction{
		TransactionID:   p.Get("txn_id"),
		TrackingID:      p.Get("ipn_track_id"),
		PaymentStatus:   p.Get("payment_status"),
		TransactionType: p.Get("txn_type"),
		Currency:        p.Get("mc_currency"),
		ReceiverCandidates: []string{
			p.Get("receiver_email"),
			p.Get("business"),
			p.Get("receiver_id"),
		},
		PayerEmail:  p.Get("payer_email"),
		PayerName:   strings.TrimSpace(p.Get("first_name") + " " + p.Get("last_name")),
		BuyerID:     custom.BuyerID,
		SaleSubtype: custom.SaleSubtype,
	}
}

// TypeAccepted reports whether the transaction type is in the accepted set.
// Absent types are accepted for backward compatibility.
func (t Transaction) TypeAccepted() bool {
	if t.TransactionType == "" {
		return true
	}
	for _, accepted := range AcceptedTransactionTypes {
		if t.TransactionType == accepted {
			return true
		}
	}
	return false
}

// ReceiverMatches reports whether any receiver identity candidate equals the
// configured business id. An empty configured id disables the check.
func (t Transaction) ReceiverMatches(businessID string) bool {
	if businessID == "" {
		return true
	}
	for _, candidate := range t.ReceiverCandidates {
		if candidate == businessID {
			return true
		}
	}
	return false
}

// CustomField is the decoded view of the free-form custom field: either a
// JSON object carrying a buyer uid and sale subtype, or an opaque string that
// is itself the buyer identifier.
type CustomField struct {
	BuyerID     string
	SaleSubtype string
}

// ParseCustomField attempts a structured decode of the custom field and falls
// back to treating the raw value as the buyer identifier.
func ParseCustomField(raw string) CustomField {
	out := CustomField{SaleSubtype: SaleSubtypeUnknown}
	if raw == "" {
		return out
	}
	out.BuyerID = raw

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil || decoded == nil {
		return out
	}
	if value, ok := decoded["uid"]; ok {
		if id := stringifyCustomValue(value); id != "" {
			out.BuyerID = id
		}
	}
	if value, ok := decoded["type"]; ok {
		if subtype, ok := value.(string); ok && subtype != "" {
			out.SaleSubtype = subtype
		}
	}
	return out
}

func stringifyCustomValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}

// LineItem is one purchased unit extracted from the positional field
// families.
type LineItem struct {
	MaterialRef int64
	Quantity    int
	DisplayName string
}
