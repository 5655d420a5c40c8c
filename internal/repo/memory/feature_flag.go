package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type FeatureFlagRepo struct {
	*Store
}

// NewFeatureFlagRepo seeds the store with flags; existing names are left alone.
func NewFeatureFlagRepo(s *Store, seed ...entity.FeatureFlag) *FeatureFlagRepo {
	s.mu.Lock()
	for _, f := range seed {
		if _, ok := s.flags[f.Name]; ok {
			continue
		}
		cp := f
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = time.Now()
		}
		s.flags[f.Name] = &cp
	}
	s.mu.Unlock()

	return &FeatureFlagRepo{s}
}

func (r *FeatureFlagRepo) List(_ context.Context) ([]entity.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flags := make([]entity.FeatureFlag, 0, len(r.flags))
	for _, f := range r.flags {
		flags = append(flags, *f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	return flags, nil
}

func (r *FeatureFlagRepo) Get(_ context.Context, name string) (*entity.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flags[name]
	if !ok {
		return nil, fmt.Errorf("FeatureFlagRepo - Get: %w", errs.ErrRecordNotFound)
	}
	cp := *f

	return &cp, nil
}

func (r *FeatureFlagRepo) SetEnabled(_ context.Context, name string, enabled bool) (*entity.FeatureFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flags[name]
	if !ok {
		return nil, fmt.Errorf("FeatureFlagRepo - SetEnabled: %w", errs.ErrRecordNotFound)
	}
	f.Enabled = enabled
	f.UpdatedAt = time.Now()
	cp := *f

	return &cp, nil
}
