package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder used by imaging.Decode
)

// BreakerName is the circuit guarding document storage reads.
const BreakerName = "document_storage"

const (
	_defaultMaxSize = 5 << 20
	_pdfTrailerScan = 1024
)

// Guard wraps storage calls, typically with a circuit breaker.
type Guard func(ctx context.Context, fn func(ctx context.Context) error) error

func passThrough(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Verifier checks that an uploaded document exists, fits the size limit,
// matches its declared type and is structurally readable.
type Verifier struct {
	store   repo.DocumentRepo
	maxSize int64
	guard   Guard
}

type Option func(*Verifier)

func MaxSize(n int64) Option {
	return func(v *Verifier) {
		v.maxSize = n
	}
}

func WithGuard(g Guard) Option {
	return func(v *Verifier) {
		v.guard = g
	}
}

func New(store repo.DocumentRepo, opts ...Option) *Verifier {
	v := &Verifier{
		store:   store,
		maxSize: _defaultMaxSize,
		guard:   passThrough,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify returns an error wrapping errs.ErrInvalidDocument when the document
// itself is bad. Any other error is a storage failure worth retrying.
func (v *Verifier) Verify(ctx context.Context, doc entity.Document) error {
	data, size, missing, err := v.fetch(ctx, doc.Key)
	if err != nil {
		return fmt.Errorf("Verifier - Verify - v.fetch: %w", err)
	}
	if missing {
		return invalid(doc, "object not found")
	}

	if size > v.maxSize || int64(len(data)) > v.maxSize {
		return invalid(doc, fmt.Sprintf("size exceeds %d bytes", v.maxSize))
	}
	if len(data) == 0 {
		return invalid(doc, "empty object")
	}

	declared, ok := normalizeType(doc.DeclaredType)
	if !ok {
		return invalid(doc, fmt.Sprintf("unsupported declared type %q", doc.DeclaredType))
	}

	sniffed := Sniff(data)
	if sniffed != declared {
		return invalid(doc, fmt.Sprintf("content is %q, declared %q", sniffed, declared))
	}

	if err = checkStructure(sniffed, data); err != nil {
		return invalid(doc, err.Error())
	}

	return nil
}

// fetch separates "not there" from storage errors so only the latter reach the guard as failures.
// Objects larger than maxSize are not downloaded; only their size is returned.
func (v *Verifier) fetch(ctx context.Context, key string) ([]byte, int64, bool, error) {
	var (
		data    []byte
		size    int64
		missing bool
	)

	err := v.guard(ctx, func(ctx context.Context) error {
		var err error

		size, err = v.store.Size(ctx, key)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				missing = true
				return nil
			}
			return err
		}

		if size > v.maxSize {
			return nil
		}

		data, err = v.store.DownloadBytes(ctx, key)
		if errors.Is(err, errs.ErrRecordNotFound) {
			missing = true
			return nil
		}

		return err
	})

	return data, size, missing, err
}

func invalid(doc entity.Document, reason string) error {
	return fmt.Errorf("%w: %s (%s)", errs.ErrInvalidDocument, doc.Name, reason)
}

func checkStructure(contentType string, data []byte) error {
	switch contentType {
	case TypePDF:
		tail := data
		if len(tail) > _pdfTrailerScan {
			tail = tail[len(tail)-_pdfTrailerScan:]
		}
		if !bytes.Contains(tail, []byte("%%EOF")) {
			return errors.New("pdf trailer missing")
		}
	default:
		if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("image decode: %w", err)
		}
	}

	return nil
}
