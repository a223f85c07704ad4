package chat

import (
	"encoding/json"
	"time"
)

// HistoryEntry records one relayed exchange for an email address.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Message   string          `json:"message"`
	Response  json.RawMessage `json:"response"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Completion is the hosted model's answer. Raw is the payload exactly as the
// upstream returned it; AIOut is the extracted reply text.
type Completion struct {
	AIOut string          `json:"AI_out"`
	Raw   json.RawMessage `json:"-"`
}

// Payload returns the JSON to hand back to API callers, preferring the
// untouched upstream body.
func (c Completion) Payload() json.RawMessage {
	if len(c.Raw) > 0 {
		return c.Raw
	}
	data, _ := json.Marshal(map[string]string{"AI_out": c.AIOut})
	return data
}
