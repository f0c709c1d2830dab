package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinicflow/clinicflow/pkg/jobs"
)

// Service wraps the jobs runner with signal handling so the process shuts the
// scheduler down cleanly.
type Service struct {
	id     string
	runner *jobs.Runner
	logger *slog.Logger
}

func NewService(id string, runner *jobs.Runner, logger *slog.Logger) *Service {
	return &Service{
		id:     id,
		runner: runner,
		logger: logger.With("module", "jobs-service"),
	}
}

// Start runs the scheduler until the process receives a termination signal.
func (s *Service) Start(ctx context.Context) error {
	sCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("Starting jobs service", "service_id", s.id)

	err := s.runner.Start(sCtx)
	if err != nil {
		return err
	}

	s.handleSignals(sCtx, cancel)

	<-sCtx.Done()
	s.logger.Info("Jobs service context cancelled, stopping...")

	return s.runner.Stop(context.WithoutCancel(sCtx))
}

func (s *Service) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-signals:
			s.logger.Info("Received signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
}
