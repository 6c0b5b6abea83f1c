package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/repository"
	"github.com/noah-isme/studio-agenda-api/internal/service"
	"github.com/noah-isme/studio-agenda-api/pkg/config"
	"github.com/noah-isme/studio-agenda-api/pkg/database"
	"github.com/noah-isme/studio-agenda-api/pkg/logger"
)

// repair-enrollments reports duplicate active enrollments and transfers
// whose source enrollment is still active. Pass -apply to deactivate them.
func main() {
	apply := flag.Bool("apply", false, "deactivate the offending enrollments instead of only reporting them")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for the run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// The audit queue is never started, so entries are written inline
	// before the process exits.
	audit := service.NewAuditService(repository.NewUserRepository(db), service.AuditConfig{}, logr)
	repair := service.NewRepairService(
		repository.NewEnrollmentRepository(db),
		repository.NewChangeRequestRepository(db),
		audit,
		logr,
	)

	report, err := repair.Run(ctx, *apply)
	if err != nil {
		logr.Fatal("repair failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logr.Fatal("failed to write report", zap.Error(err))
	}
	if !report.Applied && len(report.Deactivated) > 0 {
		logr.Info("dry run only, re-run with -apply to fix", zap.Int("enrollments", len(report.Deactivated)))
	}
}
