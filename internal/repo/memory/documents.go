package memory

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type DocumentRepo struct {
	*Store
}

func NewDocumentRepo(s *Store) *DocumentRepo {
	return &DocumentRepo{s}
}

func (r *DocumentRepo) Put(key string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[key] = append([]byte(nil), data...)
}

func (r *DocumentRepo) Size(_ context.Context, key string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.documents[key]
	if !ok {
		return 0, fmt.Errorf("DocumentRepo - Size: %w", errs.ErrRecordNotFound)
	}

	return int64(len(b)), nil
}

func (r *DocumentRepo) DownloadBytes(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.documents[key]
	if !ok {
		return nil, fmt.Errorf("DocumentRepo - DownloadBytes: %w", errs.ErrRecordNotFound)
	}

	return append([]byte(nil), b...), nil
}
