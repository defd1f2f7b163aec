package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/events"
	"crm-backend/pkg/csvutil"
	"crm-backend/pkg/logger"

	"github.com/google/uuid"
)

const ingestLockKey = "lock:leads:ingest"

// IngestResult reports one CSV ingestion. Created counts only rows that were committed.
type IngestResult struct {
	Created int      `json:"processed_count"`
	Errors  []string `json:"errors"`
}

// Ingest parses a CSV payload and commits every acceptable row in one transaction.
//
// Rows are numbered from 1, excluding the header. Blank FRNs are skipped silently,
// an FRN repeated within the file or already stored is reported, and an
// unparseable pipeline_status falls back to Unassigned. A failed commit persists
// nothing: Created is 0 and "Commit failed: ..." is appended to Errors.
func (s *Service) Ingest(ctx context.Context, actor Principal, data []byte) (IngestResult, error) {
	rows, err := csvutil.Parse(data)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	release := s.lockIngest(ctx)
	defer release()

	frns := make([]string, 0, len(rows))
	for _, row := range rows {
		if frn := strings.TrimSpace(row["frn"]); frn != "" {
			frns = append(frns, frn)
		}
	}
	existing, err := s.repo.ExistingFRNs(ctx, frns)
	if err != nil {
		return IngestResult{}, err
	}

	now := s.now()
	importEntry := "Imported from CSV on " + FormatTimestamp(now)

	res := IngestResult{Errors: []string{}}
	seen := make(map[string]struct{}, len(frns))
	batch := make([]Lead, 0, len(frns))

	for i, row := range rows {
		n := i + 1
		frn := strings.TrimSpace(row["frn"])
		if frn == "" {
			continue
		}
		if _, dup := seen[frn]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Duplicate FRN in CSV %s", n, frn))
			continue
		}
		if _, dup := existing[frn]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Duplicate FRN in DB %s", n, frn))
			continue
		}

		l, err := importedLead(row, frn, importEntry, now)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", n, err.Error()))
			continue
		}
		seen[frn] = struct{}{}
		batch = append(batch, l)
	}

	if len(batch) == 0 {
		return res, nil
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		logger.From(ctx).Warn("csv ingest commit failed", "rows", len(batch), "err", err)
		res.Errors = append(res.Errors, "Commit failed: "+err.Error())
		return res, nil
	}
	res.Created = len(batch)

	s.record(ctx, actor, audit.EventLeadsImported, "", fmt.Sprintf("imported %d leads, %d row errors", res.Created, len(res.Errors)))
	s.publish(ctx, events.LeadsImported, actor, Lead{}, res.Created)
	return res, nil
}

// importedLead builds one lead from a CSV row. A panic is reported as a row error.
func importedLead(row map[string]string, frn, entry string, now time.Time) (l Lead, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	if len(frn) > maxShortField {
		return Lead{}, fmt.Errorf("frn exceeds %d characters", maxShortField)
	}
	company := strings.TrimSpace(row["company_name"])
	if company == "" {
		company = "Unknown"
	}
	if len(company) > maxShortField {
		return Lead{}, fmt.Errorf("company_name exceeds %d characters", maxShortField)
	}

	l = Lead{
		ID:             uuid.NewString(),
		FRN:            frn,
		CompanyName:    company,
		PipelineStatus: StatusUnassigned,
		History:        []string{entry},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, f := range []struct {
		name string
		dst  **string
		max  int
	}{
		{"contact_email", &l.ContactEmail, maxShortField},
		{"contact_phone", &l.ContactPhone, maxShortField},
		{"service_type", &l.ServiceType, maxShortField},
		{"website", &l.Website, maxShortField},
		{"notes", &l.Notes, maxNotesField},
	} {
		v, ok := row[f.name]
		if !ok {
			continue
		}
		if *f.dst, err = optionalField(f.name, &v, f.max); err != nil {
			return Lead{}, err
		}
	}

	// Bulk import tolerates a bad status; explicit updates do not.
	if raw := strings.TrimSpace(row["pipeline_status"]); raw != "" {
		if st, perr := ParseStatus(raw); perr == nil {
			l.PipelineStatus = st
		}
	}
	return l, nil
}

func (s *Service) lockIngest(ctx context.Context) func() {
	if s.deps.Locker == nil {
		return func() {}
	}
	release, err := s.deps.Locker.Obtain(ctx, ingestLockKey, s.deps.LockTTL)
	if err != nil {
		// Proceed unlocked; the unique index on frn remains the backstop.
		logger.From(ctx).Warn("csv ingest lock not obtained", "err", err)
		return func() {}
	}
	return release
}
