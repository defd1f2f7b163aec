package leads

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	keys     []string
	released int
}

func (f *fakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}, nil
}

func countLeads(t *testing.T, repo *MemoryRepo) int {
	t.Helper()
	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestIngest_DuplicateInBatchAndBlankFRN(t *testing.T) {
	env := newTestEnv(t)

	csv := "frn,company_name\nA,X\nA,Y\n,Z\n"
	res, err := env.svc.Ingest(context.Background(), admin, []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []string{"Row 2: Duplicate FRN in CSV A"}, res.Errors)

	l, err := env.repo.GetByFRN(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "X", l.CompanyName, "first occurrence wins")
	assert.Equal(t, 1, countLeads(t, env.repo))
}

func TestIngest_StrayQuoteDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t)

	csv := "frn,company_name\nA,Fine Co\nB,Joe \"Best\" Shop\nC,Other\n"
	res, err := env.svc.Ingest(context.Background(), admin, []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Created)
	assert.Empty(t, res.Errors)

	l, err := env.repo.GetByFRN(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, `Joe "Best" Shop`, l.CompanyName)
}

func TestIngest_ReingestCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	csv := []byte("frn,company_name\nA,X\nB,Y\nC,Z\n")

	first, err := env.svc.Ingest(context.Background(), admin, csv)
	require.NoError(t, err)
	require.Equal(t, 3, first.Created)
	require.Empty(t, first.Errors)

	second, err := env.svc.Ingest(context.Background(), admin, csv)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, []string{
		"Row 1: Duplicate FRN in DB A",
		"Row 2: Duplicate FRN in DB B",
		"Row 3: Duplicate FRN in DB C",
	}, second.Errors)
	assert.Equal(t, 3, countLeads(t, env.repo))
}

func TestIngest_CollidesWithDirectCreate(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "A")

	res, err := env.svc.Ingest(context.Background(), admin, []byte("frn\nA\nB\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []string{"Row 1: Duplicate FRN in DB A"}, res.Errors)
}

func TestIngest_RowDefaults(t *testing.T) {
	env := newTestEnv(t)

	csv := "frn,company_name,contact_email,website,pipeline_status,notes\n" +
		"A,,a@x.test,,Approved,\n" +
		"B,Beta,,,not-a-status,call later\n"
	res, err := env.svc.Ingest(context.Background(), admin, []byte(csv))
	require.NoError(t, err)
	require.Equal(t, 2, res.Created)
	require.Empty(t, res.Errors, "an invalid status falls back silently")

	a, err := env.repo.GetByFRN(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", a.CompanyName)
	assert.Equal(t, StatusApproved, a.PipelineStatus)
	assert.Equal(t, "a@x.test", *a.ContactEmail)
	assert.Nil(t, a.Website)
	assert.Nil(t, a.Notes)
	assert.Nil(t, a.AssignedEmployeeID)
	require.Len(t, a.History, 1)
	assert.Equal(t, "Imported from CSV on "+FormatTimestamp(a.CreatedAt), a.History[0])

	b, err := env.repo.GetByFRN(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, StatusUnassigned, b.PipelineStatus)
	assert.Equal(t, "call later", *b.Notes)

	assert.Len(t, env.audit.ByType(audit.EventLeadsImported), 1)
	evs := env.events.Events()
	require.NotEmpty(t, evs)
	assert.Equal(t, events.LeadsImported, evs[len(evs)-1].Type)
	assert.Equal(t, 2, evs[len(evs)-1].Count)
}

func TestIngest_BadRowDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t)

	csv := "frn,company_name\nA," + strings.Repeat("x", 300) + "\nB,Fine\nA,Retry\n"
	res, err := env.svc.Ingest(context.Background(), admin, []byte(csv))
	require.NoError(t, err)

	// A failed row does not claim its FRN, so the later "A" is accepted.
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []string{"Row 1: company_name exceeds 255 characters"}, res.Errors)
}

// Strategy (a): one transaction for the whole batch. A failed commit keeps nothing.
func TestIngest_CommitFailurePersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.repo.FailCreateBatch = errors.New("connection reset")

	res, err := env.svc.Ingest(context.Background(), admin, []byte("frn,company_name\nA,X\nA,Y\nB,Z\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, []string{
		"Row 2: Duplicate FRN in CSV A",
		"Commit failed: connection reset",
	}, res.Errors)
	assert.Equal(t, 0, countLeads(t, env.repo))
	assert.Empty(t, env.audit.ByType(audit.EventLeadsImported))
}

// A row inserted after the pre-check (a concurrent writer) fails the commit as a whole.
func TestIngest_LateUniqueCollisionRollsBackBatch(t *testing.T) {
	env := newTestEnv(t)
	raced := &racingRepo{MemoryRepo: env.repo, frn: "B"}
	svc := NewService(raced, Deps{})
	svc.clock = env.svc.clock

	res, err := svc.Ingest(context.Background(), admin, []byte("frn\nA\nB\nC\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Commit failed: "), res.Errors[0])
	assert.Equal(t, 1, countLeads(t, env.repo), "only the concurrent writer's lead exists")
}

// racingRepo inserts a conflicting lead between the FRN pre-check and the commit.
type racingRepo struct {
	*MemoryRepo
	frn string
}

func (r *racingRepo) CreateBatch(ctx context.Context, batch []Lead) error {
	now := time.Now().UTC()
	if _, err := r.MemoryRepo.Create(ctx, Lead{ID: "11111111-1111-4111-8111-111111111111", FRN: r.frn, CompanyName: "racer", PipelineStatus: StatusUnassigned, CreatedAt: now, UpdatedAt: now}); err != nil {
		return err
	}
	return r.MemoryRepo.CreateBatch(ctx, batch)
}

func TestIngest_ParseErrorIsTopLevel(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Ingest(context.Background(), admin, []byte("frn,company_name\nA,X\nB,\xff\xfe\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.Equal(t, KindParse, KindOf(err))
	assert.Zero(t, res.Created)
	assert.Equal(t, 0, countLeads(t, env.repo))
}

func TestIngest_EmptyPayload(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Ingest(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.NotNil(t, res.Errors)
	assert.Empty(t, res.Errors)
}

func TestIngest_UsesLockWhenAvailable(t *testing.T) {
	locker := &fakeLocker{}
	env := newTestEnv(t, func(d *Deps) { d.Locker = locker })

	_, err := env.svc.Ingest(context.Background(), admin, []byte("frn\nA\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{ingestLockKey}, locker.keys)
	assert.Equal(t, 1, locker.released)

	// Parse failures never take the lock.
	_, err = env.svc.Ingest(context.Background(), admin, []byte("frn\n\xff\n"))
	require.Error(t, err)
	assert.Len(t, locker.keys, 1)
}

func TestIngest_ProceedsWhenLockUnavailable(t *testing.T) {
	locker := &fakeLocker{err: errors.New("redis down")}
	env := newTestEnv(t, func(d *Deps) { d.Locker = locker })

	res, err := env.svc.Ingest(context.Background(), admin, []byte("frn\nA\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}
