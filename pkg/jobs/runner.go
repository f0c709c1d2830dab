// Package jobs runs the periodic queue maintenance: priority rescoring and
// auto-assignment of unassigned tasks, per clinic, on cron schedules.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/clinicflow/clinicflow/pkg/otelhelper"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
)

// Config describes the maintenance schedules. Both jobs iterate the same
// clinic list; each clinic is processed independently so one clinic's failure
// never blocks another's.
type Config struct {
	Clinics          []string
	ReprioritizeCron string
	AutoAssignCron   string
}

type Runner struct {
	manager *taskqueue.Manager
	config  Config
	logger  *slog.Logger
	tracer  trace.Tracer
	cron    *cron.Cron
}

func NewRunner(manager *taskqueue.Manager, config Config, logger *slog.Logger) *Runner {
	return &Runner{
		manager: manager,
		config:  config,
		logger:  logger.With("module", "jobs"),
		tracer:  noop.NewTracerProvider().Tracer("jobs"),
	}
}

// WithTracer replaces the no-op tracer with a real one.
func (r *Runner) WithTracer(tracer trace.Tracer) *Runner {
	r.tracer = tracer

	return r
}

func (r *Runner) Validate() error {
	if len(r.config.Clinics) == 0 {
		return errors.New("at least one clinic is required")
	}

	for name, expr := range map[string]string{
		"reprioritize": r.config.ReprioritizeCron,
		"auto-assign":  r.config.AutoAssignCron,
	} {
		if expr == "" {
			return fmt.Errorf("cron expression required for %s job", name)
		}

		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid cron expression '%s' for %s job: %w", expr, name, err)
		}
	}

	return nil
}

func (r *Runner) Start(ctx context.Context) error {
	err := r.Validate()
	if err != nil {
		return err
	}

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err = r.cron.AddFunc(r.config.ReprioritizeCron, func() { r.RunReprioritize(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule reprioritize job: %w", err)
	}

	_, err = r.cron.AddFunc(r.config.AutoAssignCron, func() { r.RunAutoAssign(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule auto-assign job: %w", err)
	}

	r.cron.Start()

	r.logger.Info("Jobs runner started",
		"clinics", len(r.config.Clinics),
		"reprioritize_cron", r.config.ReprioritizeCron,
		"auto_assign_cron", r.config.AutoAssignCron,
	)

	return nil
}

func (r *Runner) Stop(_ context.Context) error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.logger.Info("Jobs runner stopped")
	}

	return nil
}

// RunReprioritize rescores every open task in every configured clinic.
// Rescoring is deterministic and idempotent, so an overlapping or repeated run
// is harmless.
func (r *Runner) RunReprioritize(ctx context.Context) {
	for _, clinicID := range r.config.Clinics {
		spanCtx, span := otelhelper.StartSpan(ctx, r.tracer, "jobs.reprioritize",
			attribute.String(otelhelper.ClinicIDKey, clinicID))

		updated, err := r.manager.Reprioritize(spanCtx, clinicID)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()
			r.logger.ErrorContext(spanCtx, "Reprioritize run failed",
				"clinic_id", clinicID, "error", err)

			continue
		}

		span.SetAttributes(attribute.Int("jobs.updated", updated))
		span.End()

		r.logger.InfoContext(spanCtx, "Reprioritize run finished",
			"clinic_id", clinicID, "updated", updated)
	}
}

// RunAutoAssign distributes unassigned pending tasks to the least-loaded
// active staff in every configured clinic.
func (r *Runner) RunAutoAssign(ctx context.Context) {
	for _, clinicID := range r.config.Clinics {
		spanCtx, span := otelhelper.StartSpan(ctx, r.tracer, "jobs.auto_assign",
			attribute.String(otelhelper.ClinicIDKey, clinicID))

		assigned, err := r.manager.AutoAssign(spanCtx, clinicID)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()
			r.logger.ErrorContext(spanCtx, "Auto-assign run failed",
				"clinic_id", clinicID, "error", err)

			continue
		}

		span.SetAttributes(attribute.Int("jobs.assigned", assigned))
		span.End()

		r.logger.InfoContext(spanCtx, "Auto-assign run finished",
			"clinic_id", clinicID, "assigned", assigned)
	}
}
