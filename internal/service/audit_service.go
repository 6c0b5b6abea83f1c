package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/jobs"
	"github.com/noah-isme/studio-agenda-api/pkg/middleware/requestid"
)

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditClient identifies the HTTP caller behind an audit entry.
type AuditClient struct {
	IPAddress string
	UserAgent string
}

type auditClientKey struct{}

// WithAuditClient attaches caller details that Record copies onto entries.
func WithAuditClient(ctx context.Context, client AuditClient) context.Context {
	return context.WithValue(ctx, auditClientKey{}, client)
}

// AuditClientFromContext returns the caller attached by WithAuditClient.
func AuditClientFromContext(ctx context.Context) (AuditClient, bool) {
	if ctx == nil {
		return AuditClient{}, false
	}
	client, ok := ctx.Value(auditClientKey{}).(AuditClient)
	return client, ok
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	Retries    int
	BufferSize int
}

// AuditService writes audit entries off the request path. When the queue is
// not running or is full the entry is written inline.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue[models.AuditLog]
	logger *zap.Logger
}

// NewAuditService constructs the service and its queue. Call Start before use.
func NewAuditService(store auditStore, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{store: store, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record stamps and dispatches an audit entry. Failures are logged only.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if s == nil || s.store == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = requestid.FromContext(ctx)
	}
	if client, ok := AuditClientFromContext(ctx); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = client.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = client.UserAgent
		}
	}
	if entry.IPAddress == "" {
		entry.IPAddress = "system"
	}

	err := s.queue.Enqueue(jobs.Job[models.AuditLog]{ID: entry.ID, Type: entry.Action, Payload: entry})
	if err == nil {
		return
	}
	s.logger.Debug("audit queue unavailable, writing inline", zap.Error(err))
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.store.CreateAuditLog(writeCtx, &entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	return s.store.CreateAuditLog(ctx, &entry)
}
