// Package main provides the periodic queue maintenance service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/cmd"
	"github.com/clinicflow/clinicflow/pkg/jobs"
	"github.com/clinicflow/clinicflow/pkg/log"
	"github.com/clinicflow/clinicflow/pkg/otelhelper"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
)

func main() {
	command := &cli.Command{
		Name:                  "clinicflow-jobs",
		Usage:                 "Run the periodic task rescoring and auto-assignment jobs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "jobs-id",
				Aliases: []string{"id"},
				Usage:   "Custom jobs service ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("JOBS_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringSliceFlag{
				Name:     "clinics",
				Usage:    "Clinic IDs to maintain",
				Required: true,
				Sources:  cli.EnvVars("CLINICS"),
			},
			&cli.StringFlag{
				Name:    "reprioritize-cron",
				Usage:   "Cron schedule for task rescoring",
				Value:   "*/15 * * * *",
				Sources: cli.EnvVars("REPRIORITIZE_CRON"),
			},
			&cli.StringFlag{
				Name:    "auto-assign-cron",
				Usage:   "Cron schedule for auto-assignment",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("AUTO_ASSIGN_CRON"),
			},
			&cli.StringFlag{
				Name:    "deliverer",
				Usage:   "Event delivery channel (kafka, redis, gochannel, log)",
				Value:   "log",
				Sources: cli.EnvVars("DELIVERER"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the redis deliverer",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			jobsID := command.String("jobs-id")
			if jobsID == "" {
				jobsID = fmt.Sprintf("jobs-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("jobs").With("jobs_id", jobsID)
			logger.InfoContext(ctx, "Initializing ClinicFlow jobs service")

			tracer, err := otelhelper.NewTracer(ctx, "clinicflow-jobs")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			deliverer, err := cmd.NewDeliverer(command.String("deliverer"), command.String("redis-url"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := deliverer.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close deliverer", "error", err)
				}
			}()

			broadcaster := broadcast.NewBroadcaster(persistence.EventRepository(), logger, deliverer)
			manager := taskqueue.NewManager(persistence, broadcaster, logger)

			runner := jobs.NewRunner(manager, jobs.Config{
				Clinics:          command.StringSlice("clinics"),
				ReprioritizeCron: command.String("reprioritize-cron"),
				AutoAssignCron:   command.String("auto-assign-cron"),
			}, logger).WithTracer(tracer)

			return NewService(jobsID, runner, logger).Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
