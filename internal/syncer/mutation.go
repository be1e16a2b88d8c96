package syncer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"flightbook/internal/errs"
	"flightbook/internal/models"
)

// Mutation is the decoded form of a queue item. The set of variants is closed:
// a new item type needs a Decode branch and an Executor.dispatch branch.
type Mutation interface {
	mutation()
}

// BookingMutation creates a booking. Ref links it back to local drafts.
type BookingMutation struct {
	Body json.RawMessage
	Ref  models.BookingRef
}

// PriceAlertMutation carries the alert id for update and delete.
type PriceAlertMutation struct {
	Action models.Action
	ID     string
	Body   json.RawMessage
}

// PreferenceMutation always replaces the full preference object.
type PreferenceMutation struct {
	Body json.RawMessage
}

type PaymentMutation struct {
	Body json.RawMessage
}

func (BookingMutation) mutation()    {}
func (PriceAlertMutation) mutation() {}
func (PreferenceMutation) mutation() {}
func (PaymentMutation) mutation()    {}

// Decode resolves an item into its variant. Errors wrap ErrUnknownItemType or
// ErrInvalidPayload and are never worth retrying.
func Decode(item *models.QueueItem) (Mutation, error) {
	if !item.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownItemType, item.Type)
	}
	if len(item.Data) == 0 || !json.Valid(item.Data) {
		return nil, fmt.Errorf("%w: %s data is not JSON", errs.ErrInvalidPayload, item.Type)
	}

	switch item.Type {
	case models.TypeBooking:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item.Data, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: booking data must be a JSON object", errs.ErrInvalidPayload)
		}
		// Non-string ids cannot match a draft; the booking is still replayed.
		var ref models.BookingRef
		_ = json.Unmarshal(obj["userId"], &ref.UserID)
		_ = json.Unmarshal(obj["flightId"], &ref.FlightID)
		return BookingMutation{Body: item.Data, Ref: ref}, nil

	case models.TypePriceAlert:
		m := PriceAlertMutation{Action: item.Action, Body: item.Data}
		switch item.Action {
		case models.ActionCreate:
			return m, nil
		case models.ActionUpdate, models.ActionDelete:
			id, err := payloadID(item.Data)
			if err != nil {
				return nil, err
			}
			m.ID = id
			if item.Action == models.ActionDelete {
				m.Body = nil
			}
			return m, nil
		default:
			return nil, fmt.Errorf("%w: price alert action %q", errs.ErrInvalidPayload, item.Action)
		}

	case models.TypePreference:
		return PreferenceMutation{Body: item.Data}, nil

	case models.TypePayment:
		return PaymentMutation{Body: item.Data}, nil
	}
	return nil, fmt.Errorf("%w: %q", errs.ErrUnknownItemType, item.Type)
}

// payloadID reads data.id as a string or a bare JSON number.
func payloadID(data json.RawMessage) (string, error) {
	var p struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || len(p.ID) == 0 {
		return "", fmt.Errorf("%w: missing id", errs.ErrInvalidPayload)
	}
	raw := bytes.TrimSpace(p.ID)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", fmt.Errorf("%w: missing id", errs.ErrInvalidPayload)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: id must be a string or number", errs.ErrInvalidPayload)
	}
	return n.String(), nil
}
