package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abduss/crmassets/internal/config"
	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/logger"
	"github.com/abduss/crmassets/internal/record"
	"github.com/abduss/crmassets/internal/storage"
	"github.com/abduss/crmassets/internal/upload"
	"github.com/abduss/crmassets/internal/uploader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is the wiring one command run works with.
type app struct {
	pipeline uploader.Pipeline
	diag     *diagnostics.Log
	close    func()
}

type appFactory func(ctx context.Context, withRecords bool) (*app, error)

func newEnvApp(ctx context.Context, withRecords bool) (*app, error) {
	log, err := logger.Init()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}

	a := &app{
		pipeline: uploader.Pipeline{
			Storage: storage.NewMinIOBackend(client, cfg.MinIO.Region, cfg.MinIO.PublicBaseURL),
			Containers: upload.Containers{
				upload.KindUser:    cfg.MinIO.Buckets.User,
				upload.KindContact: cfg.MinIO.Buckets.Contact,
				upload.KindCompany: cfg.MinIO.Buckets.Company,
			},
			MaxBytes:   cfg.Upload.MaxBytes,
			WriteCheck: cfg.MinIO.ProbeWrite,
			Logger:     log,
		},
		diag:  diagnostics.New(cfg.Diagnostics.Capacity, diagnostics.WithLogger(log)),
		close: func() { _ = log.Sync() },
	}
	if cfg.Upload.VerifyPublicURL {
		a.pipeline.Checker = upload.NewHTTPChecker(cfg.Upload.VerifyTimeout)
	}

	if withRecords {
		// schema changes belong to the API process
		cfg.Postgres.RunMigrations = false
		pool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			// the upload itself does not need the database
			log.Warn("record store unavailable, user records will not be updated", zap.Error(err))
			a.diag.Append("assetctl", "record store unavailable", map[string]any{"error": err.Error()})
		} else {
			a.pipeline.Records = record.NewRepository(pool)
			closeLog := a.close
			a.close = func() {
				pool.Close()
				closeLog()
			}
		}
	}
	return a, nil
}

func newRootCommand(factory appFactory) *cobra.Command {
	var diagPath string

	root := &cobra.Command{
		Use:           "assetctl",
		Short:         "Probe, provision and upload CRM image assets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&diagPath, "diagnostics", "", "write the diagnostics export to this file or directory")

	root.AddCommand(
		newProbeCommand(factory, &diagPath),
		newAutoFixCommand(factory, &diagPath),
		newUploadCommand(factory, &diagPath),
	)
	return root
}

func newProbeCommand(factory appFactory, diagPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that storage is reachable and every bucket exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			defer writeDiagnostics(cmd, a.diag, *diagPath)

			m := a.pipeline.NewMachine(a.diag, uploader.Options{Target: upload.Target{Kind: upload.KindUser}})
			return reportStatus(cmd, m.ProbeReadiness(cmd.Context()))
		},
	}
}

func newAutoFixCommand(factory appFactory, diagPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "autofix",
		Short: "Create missing buckets and re-check readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			defer writeDiagnostics(cmd, a.diag, *diagPath)

			m := a.pipeline.NewMachine(a.diag, uploader.Options{Target: upload.Target{Kind: upload.KindUser}})
			status := m.ProbeReadiness(cmd.Context())
			if !status.Ready {
				status = m.AttemptAutoFix(cmd.Context())
			}
			return reportStatus(cmd, status)
		},
	}
}

func newUploadCommand(factory appFactory, diagPath *string) *cobra.Command {
	var (
		kindFlag    string
		entityID    string
		currentURL  string
		contentType string
		autoFix     bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image for a user, contact or company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := upload.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if contentType == "" {
				contentType = upload.Sniff(data)
			}

			a, err := factory(cmd.Context(), kind == upload.KindUser)
			if err != nil {
				return err
			}
			defer a.close()
			defer writeDiagnostics(cmd, a.diag, *diagPath)

			m := a.pipeline.NewMachine(a.diag, uploader.Options{
				Target:          upload.Target{Kind: kind, EntityID: entityID},
				CurrentAssetURL: currentURL,
			})

			status := m.ProbeReadiness(cmd.Context())
			if !status.Ready && autoFix {
				status = m.AttemptAutoFix(cmd.Context())
			}
			if !status.Ready {
				return reportStatus(cmd, status)
			}

			sel := m.SelectFile(filepath.Base(args[0]), data, contentType, int64(len(data)))
			if !sel.Accepted {
				return fmt.Errorf("%s: %s", sel.RejectionReason, sel.Message)
			}

			out, err := m.ConfirmUpload(cmd.Context())
			if err != nil {
				var uerr *uploader.Error
				if errors.As(err, &uerr) {
					return fmt.Errorf("%s: %s", uerr.Kind, uerr.Message)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.AssetURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", string(upload.KindUser), "target kind: user, contact or company")
	cmd.Flags().StringVar(&entityID, "entity", "", "external id of the owning record")
	cmd.Flags().StringVar(&currentURL, "current-url", "", "asset url currently shown for the record")
	cmd.Flags().StringVar(&contentType, "type", "", "declared content type, detected from the file when empty")
	cmd.Flags().BoolVar(&autoFix, "autofix", false, "create missing buckets before uploading")
	return cmd
}

func reportStatus(cmd *cobra.Command, status uploader.Status) error {
	if !status.Ready {
		return errors.New(status.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "storage ready")
	return nil
}

func writeDiagnostics(cmd *cobra.Command, diag *diagnostics.Log, path string) {
	if path == "" {
		return
	}
	doc, err := diag.Export()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "export diagnostics:", err)
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, doc.Filename)
	}
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "write diagnostics:", err)
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "diagnostics written to", path)
}
