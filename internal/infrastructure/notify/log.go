package notify

import (
	"context"
	"sync"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

// LogSender records emails instead of delivering them. Used when Kafka is disabled.
type LogSender struct {
	l logger.Interface

	mu   sync.Mutex
	sent []entity.Email
}

func NewLogSender(l logger.Interface) *LogSender {
	return &LogSender{l: l}
}

func (s *LogSender) Send(_ context.Context, email entity.Email) error {
	s.mu.Lock()
	s.sent = append(s.sent, email)
	s.mu.Unlock()

	s.l.Info("LogSender - Send - email %s to %s (submission %s)", email.Template, email.To, email.SubmissionID)

	return nil
}

func (s *LogSender) Sent() []entity.Email {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.Email(nil), s.sent...)
}

func (s *LogSender) Close() error {
	return nil
}
