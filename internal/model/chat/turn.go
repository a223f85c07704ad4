package chat

// TurnStatus tracks whether a turn still waits for the bot.
type TurnStatus string

const (
	TurnPending  TurnStatus = "pending"
	TurnResolved TurnStatus = "resolved"
	TurnFailed   TurnStatus = "failed"
)

// Turn is one chat message as shown to the user.
type Turn struct {
	ID     string     `json:"id"`
	Sender string     `json:"sender"`
	Text   string     `json:"text"`
	Time   string     `json:"time"`
	IsUser bool       `json:"isUser"`
	Status TurnStatus `json:"status"`
}

// Pending reports whether the turn is a placeholder awaiting a reply.
func (t Turn) Pending() bool {
	return t.Status == TurnPending
}
