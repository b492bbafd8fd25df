package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/docenrich/internal/metrics"
	"github.com/Lllllllleong/docenrich/internal/models"
)

var (
	processConcurrency int
	processDocumentID  string
	processMetricsAddr string
)

var processCmd = &cobra.Command{
	Use:   "process OBJECT_REF...",
	Short: "Run the pipeline for one or more stored objects",
	Long: `Start one execution per object reference (gs://bucket/name, or
s3://bucket/name for the MinIO backend) and wait for each to reach a terminal
state. Exits non-zero when any execution fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 4, "executions run at the same time")
	processCmd.Flags().StringVar(&processDocumentID, "document-id", "", "document id to use (single object only)")
	processCmd.Flags().StringVar(&processMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processDocumentID != "" && len(args) > 1 {
		return errors.New("--document-id can only be used with a single object")
	}
	if processConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", processConcurrency)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close backends", "error", err)
		}
	}()

	if processMetricsAddr != "" {
		srv := metrics.NewServer(processMetricsAddr)
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(processConcurrency)
	for _, ref := range args {
		g.Go(func() error {
			exec, err := a.Orchestrator.Start(gctx, models.UploadEvent{ObjectRef: ref, DocumentID: processDocumentID})
			if err != nil {
				failed.Add(1)
				slog.Error("Could not start execution", "objectRef", ref, "error", err)
				return nil
			}
			printExecution(cmd, exec)
			if exec.Status != models.StatusCompleted {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d executions did not complete", n, len(args))
	}
	return nil
}

func printExecution(cmd *cobra.Command, exec *models.Execution) {
	out := cmd.OutOrStdout()
	switch exec.Status {
	case models.StatusCompleted:
		fmt.Fprintf(out, "%s\t%s\tcompleted\tattempts=%d\n", exec.ObjectRef, exec.DocumentID, exec.Attempt)
	default:
		fmt.Fprintf(out, "%s\t%s\tfailed at %s\t%s: %s\n", exec.ObjectRef, exec.DocumentID, exec.FailedStage, exec.FailureReason, exec.ErrorDetails)
	}
}
