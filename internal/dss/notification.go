package dss

import (
	"encoding/json"
	"fmt"

	"github.com/uasmesh/rid-display/internal/rid"
)

// SubscriptionState identifies one subscription affected by an inbound ISA
// notification, with the DSS's notification counter for it.
type SubscriptionState struct {
	SubscriptionID    string `json:"subscription_id"`
	NotificationIndex int    `json:"notification_index"`
}

// Notification is a decoded inbound ISA change. A nil ISA means the area
// identified by the request path was deleted.
type Notification struct {
	ISA           *rid.ISA
	Subscriptions []SubscriptionState
}

type notificationWire struct {
	ServiceArea *struct {
		ID         string   `json:"id"`
		Owner      string   `json:"owner"`
		FlightsURL string   `json:"flights_url"`
		USSBaseURL string   `json:"uss_base_url"`
		TimeStart  string   `json:"time_start"`
		TimeEnd    string   `json:"time_end"`
	} `json:"service_area"`
	Subscriptions []SubscriptionState `json:"subscriptions"`
}

// DecodeNotification parses the body of an inbound ISA notification. Both
// wire revisions are accepted; they differ only in how the flights endpoint
// is announced.
func DecodeNotification(body []byte) (*Notification, error) {
	var wire notificationWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("invalid notification body: %w", err)
	}

	out := &Notification{Subscriptions: wire.Subscriptions}
	if wire.ServiceArea == nil {
		return out, nil
	}

	area := wire.ServiceArea
	isa := rid.ISA{ID: area.ID, Owner: area.Owner, FlightsURL: area.FlightsURL}
	if isa.FlightsURL == "" && area.USSBaseURL != "" {
		isa.FlightsURL = area.USSBaseURL + "/uss/flights"
	}
	if isa.ID == "" {
		return nil, fmt.Errorf("notification service_area missing id")
	}
	if isa.FlightsURL == "" {
		return nil, fmt.Errorf("notification service_area %s missing flights endpoint", isa.ID)
	}

	var err error
	if area.TimeStart != "" {
		if isa.TimeStart, err = parseRFC3339(area.TimeStart); err != nil {
			return nil, fmt.Errorf("notification service_area %s: invalid time_start: %w", isa.ID, err)
		}
	}
	if area.TimeEnd != "" {
		if isa.TimeEnd, err = parseRFC3339(area.TimeEnd); err != nil {
			return nil, fmt.Errorf("notification service_area %s: invalid time_end: %w", isa.ID, err)
		}
	}

	out.ISA = &isa
	return out, nil
}
