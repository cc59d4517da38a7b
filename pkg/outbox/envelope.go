package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ActorRef names the employee who rang up the event, when there was one.
type ActorRef struct {
	EmployeeID int64  `json:"employeeId"`
	Role       string `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload. Envelopes without an event id or
// from a newer writer are rejected; the publisher abandons them.
func DecodeEnvelope(raw json.RawMessage) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	switch {
	case env.EventID == "":
		return env, errors.New("envelope has no event id")
	case env.Version < 1 || env.Version > envelopeVersion:
		return env, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	return env, nil
}
