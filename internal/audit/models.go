package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block lead or user flows on audit failures.
type Event struct {
	ID string `json:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type"`

	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorRole   string `json:"actor_role,omitempty"`

	// IPAddress is filled from the request context when the caller leaves it empty.
	IPAddress string `json:"ip_address,omitempty"`

	// Target identifiers, depending on the event type.
	LeadID string `json:"lead_id,omitempty"`
	UserID string `json:"user_id,omitempty"`

	Message  string `json:"message,omitempty"`
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventLeadCreated   EventType = "lead_created"
	EventLeadClaimed   EventType = "lead_claimed"
	EventLeadUpdated   EventType = "lead_updated"
	EventLeadsImported EventType = "leads_imported"
	EventLeadsExported EventType = "leads_exported"
	EventUserCreated   EventType = "user_created"
	EventUserUpdated   EventType = "user_updated"
)
