package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/events"
	"crm-backend/pkg/logger"

	"github.com/google/uuid"
)

// UserDirectory resolves assignable users.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (name string, found bool, err error)
}

// AuditLogger is satisfied by *audit.Service.
type AuditLogger interface {
	Append(ctx context.Context, e audit.Event) error
}

// Locker obtains a best-effort cross-process lock. release must be safe to call once.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Deps are the optional collaborators of Service. Nil members are skipped.
type Deps struct {
	Users   UserDirectory
	Audit   AuditLogger
	Events  events.Publisher
	Locker  Locker
	LockTTL time.Duration
}

// Service implements the lead pipeline: creation, visibility-filtered reads,
// claiming, partial updates, CSV ingestion and export.
//
// Side channels (audit, events) are best-effort and never fail a committed write.
type Service struct {
	repo Repository
	deps Deps
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, deps Deps) *Service {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	return &Service{repo: repo, deps: deps, clock: time.Now}
}

// now is UTC at the precision Postgres stores.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

type CreateInput struct {
	FRN         string
	CompanyName string

	ContactEmail *string
	ContactPhone *string
	ServiceType  *string
	Website      *string
	Notes        *string

	// PipelineStatus is optional; when present it must be a valid status.
	PipelineStatus     string
	AssignedEmployeeID *string
}

func (s *Service) Create(ctx context.Context, actor Principal, in CreateInput) (Lead, error) {
	frn := strings.TrimSpace(in.FRN)
	company := strings.TrimSpace(in.CompanyName)
	if frn == "" {
		return Lead{}, validationErr("frn is required")
	}
	if company == "" {
		return Lead{}, validationErr("company_name is required")
	}
	if len(frn) > maxShortField || len(company) > maxShortField {
		return Lead{}, validationErr("frn and company_name must not exceed %d characters", maxShortField)
	}

	l := Lead{
		ID:             uuid.NewString(),
		FRN:            frn,
		CompanyName:    company,
		PipelineStatus: StatusUnassigned,
	}
	var err error
	for _, f := range []struct {
		name string
		in   *string
		dst  **string
		max  int
	}{
		{"contact_email", in.ContactEmail, &l.ContactEmail, maxShortField},
		{"contact_phone", in.ContactPhone, &l.ContactPhone, maxShortField},
		{"service_type", in.ServiceType, &l.ServiceType, maxShortField},
		{"website", in.Website, &l.Website, maxShortField},
		{"notes", in.Notes, &l.Notes, maxNotesField},
	} {
		if *f.dst, err = optionalField(f.name, f.in, f.max); err != nil {
			return Lead{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	if strings.TrimSpace(in.PipelineStatus) != "" {
		if l.PipelineStatus, err = ParseStatus(strings.TrimSpace(in.PipelineStatus)); err != nil {
			return Lead{}, err
		}
	}
	if in.AssignedEmployeeID != nil && strings.TrimSpace(*in.AssignedEmployeeID) != "" {
		assignee := strings.TrimSpace(*in.AssignedEmployeeID)
		if !actor.IsAdmin() && assignee != actor.ID {
			return Lead{}, ErrForbidden
		}
		if _, err := s.lookupUser(ctx, assignee); err != nil {
			return Lead{}, err
		}
		l.AssignedEmployeeID = strPtr(assignee)
	}

	now := s.now()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.History = []string{fmt.Sprintf("%s: Created by %s", FormatTimestamp(now), actor.Name)}

	created, err := s.repo.Create(ctx, l)
	if err != nil {
		return Lead{}, err
	}

	s.record(ctx, actor, audit.EventLeadCreated, created.ID, "lead created")
	s.publish(ctx, events.LeadCreated, actor, created, 0)
	return created, nil
}

func (s *Service) Get(ctx context.Context, actor Principal, id string) (Lead, error) {
	if !validID(id) {
		return Lead{}, ErrNotFound
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if !Readable(l, actor) {
		return Lead{}, ErrForbidden
	}
	return l, nil
}

// List returns the leads actor may see that match f, newest first.
func (s *Service) List(ctx context.Context, actor Principal, f ListFilter) ([]Lead, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, Listable(actor), f)
}

// Claim assigns an unassigned lead to actor. Exactly one concurrent claimer wins;
// every other caller gets ErrAlreadyAssigned. The pipeline status is not touched.
func (s *Service) Claim(ctx context.Context, actor Principal, id string) (Lead, error) {
	if actor.ID == "" {
		return Lead{}, ErrForbidden
	}
	if !validID(id) {
		return Lead{}, ErrNotFound
	}

	now := s.now()
	entry := fmt.Sprintf("%s: Claimed by %s", FormatTimestamp(now), actor.Name)
	l, err := s.repo.ClaimUnassigned(ctx, id, actor.ID, entry, now)
	if err != nil {
		return Lead{}, err
	}

	s.record(ctx, actor, audit.EventLeadClaimed, l.ID, entry)
	s.publish(ctx, events.LeadClaimed, actor, l, 0)
	return l, nil
}

// Update applies a partial update. Checks run on the locked row in order:
// existence, write access, then the patch itself. Any failure aborts before a write.
func (s *Service) Update(ctx context.Context, actor Principal, id string, p Patch) (Lead, error) {
	if !validID(id) {
		return Lead{}, ErrNotFound
	}

	now := s.now()
	var summary string
	updated, err := s.repo.UpdateWith(ctx, id, func(l *Lead) error {
		if !Writable(*l, actor) {
			return ErrForbidden
		}
		cp, err := p.check(actor)
		if err != nil {
			return err
		}
		assigneeName := ""
		if cp.AssignedEmployeeID.Set && cp.AssignedEmployeeID.Value != nil {
			if assigneeName, err = s.lookupUser(ctx, *cp.AssignedEmployeeID.Value); err != nil {
				return err
			}
		}

		before := l.PipelineStatus
		statusChanged, assignChanged := cp.apply(l)

		summary = historyText(cp.entry, before, l, statusChanged, assignChanged, assigneeName)
		if summary != "" {
			l.History = append(l.History, fmt.Sprintf("%s: %s (by %s)", FormatTimestamp(now), summary, actor.Name))
		}
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Lead{}, err
	}

	if summary == "" {
		summary = "lead updated"
	}
	s.record(ctx, actor, audit.EventLeadUpdated, updated.ID, summary)
	s.publish(ctx, events.LeadUpdated, actor, updated, 0)
	return updated, nil
}

// historyText describes one mutation. An explicit entry takes precedence over
// the generated description of a status or assignment change.
func historyText(entry string, before PipelineStatus, after *Lead, statusChanged, assignChanged bool, assigneeName string) string {
	if entry != "" {
		return entry
	}
	var parts []string
	if statusChanged {
		parts = append(parts, fmt.Sprintf("Status changed from %s to %s", before, after.PipelineStatus))
	}
	if assignChanged {
		switch {
		case after.AssignedEmployeeID == nil:
			parts = append(parts, "Assignment removed")
		case assigneeName != "":
			parts = append(parts, "Assigned to "+assigneeName)
		default:
			parts = append(parts, "Assigned to "+*after.AssignedEmployeeID)
		}
	}
	return strings.Join(parts, "; ")
}

// Export returns every lead in export order. Callers restrict this to admins.
func (s *Service) Export(ctx context.Context, actor Principal) ([]Lead, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sortByCreated(all)
	s.record(ctx, actor, audit.EventLeadsExported, "", fmt.Sprintf("exported %d leads", len(all)))
	return all, nil
}

func (s *Service) lookupUser(ctx context.Context, userID string) (string, error) {
	if s.deps.Users == nil {
		// the users foreign key still rejects unknown ids at write time
		return "", nil
	}
	name, found, err := s.deps.Users.DisplayName(ctx, userID)
	if err != nil {
		return "", storageErr("lookup user", err)
	}
	if !found {
		return "", validationErr("user %s does not exist", userID)
	}
	return name, nil
}

func (s *Service) record(ctx context.Context, actor Principal, typ audit.EventType, leadID, message string) {
	if s.deps.Audit == nil {
		return
	}
	err := s.deps.Audit.Append(ctx, audit.Event{
		Type:        typ,
		ActorUserID: actor.ID,
		ActorRole:   actor.Role,
		LeadID:      leadID,
		Message:     message,
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "type", typ, "lead_id", leadID, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, typ events.Type, actor Principal, l Lead, count int) {
	// The write is committed; a cancelled request must not drop the notification.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	e := events.LeadEvent{
		ID:                 uuid.NewString(),
		Type:               typ,
		LeadID:             l.ID,
		FRN:                l.FRN,
		PipelineStatus:     string(l.PipelineStatus),
		AssignedEmployeeID: deref(l.AssignedEmployeeID),
		ActorID:            actor.ID,
		Count:              count,
		OccurredAt:         s.now(),
	}
	if err := s.deps.Events.Publish(pctx, e); err != nil {
		logger.From(ctx).Warn("lead event publish failed", "type", typ, "lead_id", l.ID, "err", err)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// optionalField trims v and maps blank to nil.
func optionalField(name string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, nil
	}
	if len(t) > max {
		return nil, fmt.Errorf("%s exceeds %d characters", name, max)
	}
	return &t, nil
}
