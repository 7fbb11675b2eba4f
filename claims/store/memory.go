// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/warp/claim-ledger/claims"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	reports map[string]claims.Report
	claims  map[key]claims.Claim
}

type key struct {
	Intervenor string
	ClaimDate  string
}

func keyOf(k claims.ClaimKey) key {
	return key{Intervenor: k.Intervenor, ClaimDate: k.ClaimDate.String()}
}

func NewMemory() *Memory {
	return &Memory{
		reports: make(map[string]claims.Report),
		claims:  make(map[key]claims.Claim),
	}
}

func (m *Memory) GetReport(_ context.Context, asOf claims.Date) (*claims.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[asOf.String()]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// PutReport keeps the first report written for a date.
func (m *Memory) PutReport(_ context.Context, r claims.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[r.AsOf.String()]; !ok {
		m.reports[r.AsOf.String()] = r
	}
	return nil
}

func (m *Memory) LatestReport(_ context.Context) (*claims.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *claims.Report
	for _, r := range m.reports {
		if latest == nil || r.AsOf.After(latest.AsOf) {
			r := r
			latest = &r
		}
	}
	return latest, nil
}

func (m *Memory) GetClaim(_ context.Context, k claims.ClaimKey) (*claims.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[keyOf(k)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) PutClaim(_ context.Context, c claims.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.claims[keyOf(c.Key())] = c
	return nil
}

func (m *Memory) UpdateClaim(_ context.Context, k claims.ClaimKey, patch claims.ClaimPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[keyOf(k)]
	if !ok {
		return errors.Newf("claim %s not found", k)
	}
	m.claims[keyOf(k)] = patch.Apply(c)
	return nil
}

func (m *Memory) ListOpenClaims(ctx context.Context) ([]claims.Claim, error) {
	return m.ListClaims(ctx, claims.ClaimFilter{OpenOnly: true})
}

// =============================================================================
// READ STORE
// =============================================================================

func (m *Memory) ListReports(_ context.Context) ([]claims.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]claims.Report, 0, len(m.reports))
	for _, r := range m.reports {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AsOf.Before(result[j].AsOf) })
	return result, nil
}

func (m *Memory) ListClaims(_ context.Context, filter claims.ClaimFilter) ([]claims.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []claims.Claim
	for _, c := range m.claims {
		if filter.Matches(c) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ClaimDate.Equal(result[j].ClaimDate) {
			return result[i].ClaimDate.Before(result[j].ClaimDate)
		}
		return result[i].Intervenor < result[j].Intervenor
	})
	return result, nil
}
