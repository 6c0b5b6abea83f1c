package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

type repairEnrollments interface {
	FindDuplicateActive(ctx context.Context) ([]models.DuplicateEnrollment, error)
	DeactivateMany(ctx context.Context, ids []string) error
}

type repairChangeRequests interface {
	ListTransfersWithActiveSource(ctx context.Context) ([]models.StaleTransfer, error)
}

// RepairReport summarises what a repair run found and, when applied, fixed.
type RepairReport struct {
	Duplicates     []models.DuplicateEnrollment `json:"duplicates"`
	StaleTransfers []models.StaleTransfer       `json:"staleTransfers"`
	Deactivated    []string                     `json:"deactivated"`
	Applied        bool                         `json:"applied"`
}

// RepairService finds enrollment rows left inconsistent by interrupted
// transfers or by data loaded before the partial unique index existed.
type RepairService struct {
	enrollments repairEnrollments
	requests    repairChangeRequests
	audit       auditRecorder
	logger      *zap.Logger
}

// NewRepairService constructs the service.
func NewRepairService(enrollments repairEnrollments, requests repairChangeRequests, audit auditRecorder, logger *zap.Logger) *RepairService {
	if audit == nil {
		audit = noopAudit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairService{enrollments: enrollments, requests: requests, audit: audit, logger: logger}
}

// Run scans for duplicates and interrupted transfers. With apply it keeps
// the newest enrollment of each duplicate group and deactivates the source
// of every interrupted transfer.
func (s *RepairService) Run(ctx context.Context, apply bool) (*RepairReport, error) {
	duplicates, err := s.enrollments.FindDuplicateActive(ctx)
	if err != nil {
		return nil, internalError(err, "failed to find duplicate enrollments")
	}
	candidates, err := s.requests.ListTransfersWithActiveSource(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list stale transfers")
	}
	var stale []models.StaleTransfer
	for _, transfer := range candidates {
		if transfer.Interrupted() {
			stale = append(stale, transfer)
		}
	}

	report := &RepairReport{
		Duplicates:     duplicates,
		StaleTransfers: stale,
		Deactivated:    []string{},
		Applied:        apply,
	}
	if report.Duplicates == nil {
		report.Duplicates = []models.DuplicateEnrollment{}
	}
	if report.StaleTransfers == nil {
		report.StaleTransfers = []models.StaleTransfer{}
	}

	seen := make(map[string]struct{})
	for _, group := range duplicates {
		if len(group.EnrollmentIDs) < 2 {
			continue
		}
		for _, id := range group.EnrollmentIDs[1:] {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				report.Deactivated = append(report.Deactivated, id)
			}
		}
	}
	for _, transfer := range stale {
		if _, ok := seen[transfer.SourceEnrollmentID]; !ok {
			seen[transfer.SourceEnrollmentID] = struct{}{}
			report.Deactivated = append(report.Deactivated, transfer.SourceEnrollmentID)
		}
	}

	s.logger.Info("enrollment repair scan",
		zap.Int("duplicate_groups", len(duplicates)),
		zap.Int("active_sources", len(candidates)),
		zap.Int("stale_transfers", len(stale)),
		zap.Int("to_deactivate", len(report.Deactivated)),
		zap.Bool("apply", apply),
	)
	if !apply || len(report.Deactivated) == 0 {
		return report, nil
	}

	if err := s.enrollments.DeactivateMany(ctx, report.Deactivated); err != nil {
		return nil, internalError(err, "failed to deactivate enrollments")
	}
	payload, _ := json.Marshal(report)
	s.audit.Record(ctx, models.AuditLog{
		Action:    models.AuditActionRepair,
		Resource:  "enrollment",
		NewValues: payload,
	})
	return report, nil
}
