package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	LeadCreated   Type = "lead.created"
	LeadClaimed   Type = "lead.claimed"
	LeadUpdated   Type = "lead.updated"
	LeadsImported Type = "leads.imported"
)

// LeadEvent is a notification about a committed lead mutation.
// The type doubles as the AMQP routing key.
type LeadEvent struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`

	LeadID             string `json:"lead_id,omitempty"`
	FRN                string `json:"frn,omitempty"`
	PipelineStatus     string `json:"pipeline_status,omitempty"`
	AssignedEmployeeID string `json:"assigned_employee_id,omitempty"`
	ActorID            string `json:"actor_id,omitempty"`

	// Count is set for batch events.
	Count int `json:"count,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e LeadEvent) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LeadEvent) error { return nil }

// MemoryPublisher records events in order. Useful for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []LeadEvent
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(ctx context.Context, e LeadEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *MemoryPublisher) Events() []LeadEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LeadEvent, len(p.events))
	copy(out, p.events)
	return out
}
