package leads

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// A single mutex makes every operation linearizable, which gives claim and
// update the same atomicity the SQL repository gets from row locks.
type MemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]Lead
	byFRN map[string]string

	// UserExists emulates the users foreign key when set.
	UserExists func(id string) bool
	// FailCreateBatch, when non-nil, is returned by the next CreateBatch call
	// before anything is written, emulating a failed commit.
	FailCreateBatch error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Lead{}, byFRN: map[string]string{}}
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l.Clone(), nil
}

func (r *MemoryRepo) GetByFRN(ctx context.Context, frn string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byFRN[frn]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepo) List(ctx context.Context, vis Visibility, f ListFilter) ([]Lead, error) {
	r.mu.Lock()
	all := make([]Lead, 0, len(r.byID))
	for _, l := range r.byID {
		if vis.Allows(l) && f.Matches(l) {
			all = append(all, l.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if f.Offset >= len(all) {
		return []Lead{}, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *MemoryRepo) ListAll(ctx context.Context) ([]Lead, error) {
	r.mu.Lock()
	all := make([]Lead, 0, len(r.byID))
	for _, l := range r.byID {
		all = append(all, l.Clone())
	}
	r.mu.Unlock()
	sortByCreated(all)
	return all, nil
}

func (r *MemoryRepo) ExistingFRNs(ctx context.Context, frns []string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{})
	for _, f := range frns {
		if _, ok := r.byFRN[f]; ok {
			out[f] = struct{}{}
		}
	}
	return out, nil
}

func (r *MemoryRepo) Create(ctx context.Context, l Lead) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkInsert(l, nil); err != nil {
		return Lead{}, err
	}
	r.put(l)
	return l.Clone(), nil
}

func (r *MemoryRepo) CreateBatch(ctx context.Context, batch []Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailCreateBatch; err != nil {
		r.FailCreateBatch = nil
		return err
	}

	// Validate everything first so a failure leaves the store untouched.
	pending := make(map[string]struct{}, len(batch))
	for _, l := range batch {
		if err := r.checkInsert(l, pending); err != nil {
			return err
		}
		pending[l.FRN] = struct{}{}
	}
	for _, l := range batch {
		r.put(l)
	}
	return nil
}

func (r *MemoryRepo) ClaimUnassigned(ctx context.Context, id, employeeID, entry string, now time.Time) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byID[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	if l.AssignedEmployeeID != nil {
		return Lead{}, ErrAlreadyAssigned
	}
	if r.UserExists != nil && !r.UserExists(employeeID) {
		return Lead{}, validationErr("employee %s does not exist", employeeID)
	}

	l = l.Clone()
	l.AssignedEmployeeID = strPtr(employeeID)
	l.History = append(l.History, entry)
	l.UpdatedAt = now
	r.byID[id] = l
	return l.Clone(), nil
}

func (r *MemoryRepo) UpdateWith(ctx context.Context, id string, fn func(*Lead) error) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return Lead{}, err
	}
	if err := checkWrite(current, next); err != nil {
		return Lead{}, err
	}
	if next.FRN != current.FRN {
		if owner, taken := r.byFRN[next.FRN]; taken && owner != id {
			return Lead{}, duplicateFRN(next.FRN)
		}
	}
	if next.AssignedEmployeeID != nil && r.UserExists != nil && !r.UserExists(*next.AssignedEmployeeID) {
		return Lead{}, validationErr("assigned employee does not exist")
	}
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}

	delete(r.byFRN, current.FRN)
	r.put(next)
	return next.Clone(), nil
}

// UnassignUser mirrors ON DELETE SET NULL for a removed user.
func (r *MemoryRepo) UnassignUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.byID {
		if l.AssignedTo(userID) {
			l.AssignedEmployeeID = nil
			r.byID[id] = l
		}
	}
}

func (r *MemoryRepo) checkInsert(l Lead, pending map[string]struct{}) error {
	if _, taken := r.byFRN[l.FRN]; taken {
		return duplicateFRN(l.FRN)
	}
	if _, taken := pending[l.FRN]; taken {
		return duplicateFRN(l.FRN)
	}
	if _, taken := r.byID[l.ID]; taken {
		return fmt.Errorf("%w: duplicate lead id %s", ErrStorage, l.ID)
	}
	if l.AssignedEmployeeID != nil && r.UserExists != nil && !r.UserExists(*l.AssignedEmployeeID) {
		return validationErr("assigned employee does not exist")
	}
	return nil
}

func (r *MemoryRepo) put(l Lead) {
	l = l.Clone()
	if l.History == nil {
		l.History = []string{}
	}
	r.byID[l.ID] = l
	r.byFRN[l.FRN] = l.ID
}

func sortByCreated(all []Lead) {
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
}
