package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

// FlagChecker gates every resilience wrapper.
type FlagChecker interface {
	IsEnabled(ctx context.Context, name string) bool
}

type Flags struct {
	repo   repo.FeatureFlagRepo
	logger logger.Interface
}

func NewFlags(r repo.FeatureFlagRepo, l logger.Interface) *Flags {
	return &Flags{repo: r, logger: l}
}

// IsEnabled treats unknown flags and lookup errors as disabled.
func (f *Flags) IsEnabled(ctx context.Context, name string) bool {
	flag, err := f.repo.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, errs.ErrRecordNotFound) {
			f.logger.Warn("Flags - IsEnabled - flag %s: %v", name, err)
		}
		return false
	}

	return flag.Enabled
}

func (f *Flags) List(ctx context.Context) ([]entity.FeatureFlag, error) {
	flags, err := f.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Flags - List - f.repo.List: %w", err)
	}

	return flags, nil
}

func (f *Flags) Set(ctx context.Context, name string, enabled bool) (*entity.FeatureFlag, error) {
	flag, err := f.repo.SetEnabled(ctx, name, enabled)
	if err != nil {
		return nil, fmt.Errorf("Flags - Set - f.repo.SetEnabled: %w", err)
	}

	f.logger.Info("Flags - Set - %s enabled=%t", name, enabled)

	return flag, nil
}

// StaticFlags is a fixed flag set.
type StaticFlags map[string]bool

func (s StaticFlags) IsEnabled(_ context.Context, name string) bool {
	return s[name]
}
