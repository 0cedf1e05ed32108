package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/config"
	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/ingestion"
	"github.com/aimlclub/hackathon-portal/internal/logger"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/internal/parser"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	defaultOutput   = "certificates-data.json"
	defaultTemplate = "certificate_template.xlsx"
	defaultPreview  = 10
)

// app carries what every command needs. Fields left nil are filled from the
// environment before a command runs.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.log == nil {
		zapLogger, err := logger.New(a.cfg.LogLevel)
		if err != nil {
			return err
		}
		a.log = zapLogger
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "certadmin",
		Short:         "Prepare and publish hackathon certificate data",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.AddCommand(
		newSetupCmd(a),
		newConvertCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newTemplateCmd(),
	)
	return root
}

// newSetupCmd creates the ledger and mirror tables ahead of the first import.
func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the import database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Starting database setup...")

			// Connect creates file_records and certificate_records
			dbManager, err := database.Connect(cmd.Context(), a.cfg.DatabaseURL, a.log)
			if err != nil {
				return fmt.Errorf("error setting up database: %w", err)
			}
			dbManager.Close()

			fmt.Fprintln(out, "file_records and certificate_records tables are ready.")
			fmt.Fprintln(out, "Database setup finished successfully.")
			return nil
		},
	}
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		output  string
		strict  bool
		preview int
	)

	cmd := &cobra.Command{
		Use:   "convert <file|dir>",
		Short: "Convert .xlsx/.csv spreadsheets to certificates-data.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime := time.Now()
			sink := ingestion.NewMemorySink()

			report, err := ingestion.New(nil, *a.cfg, a.log).
				WithStrictRows(strict).
				Execute(cmd.Context(), args[0], sink)
			if report != nil {
				printRowErrors(cmd.ErrOrStderr(), report)
			}
			if err != nil {
				return err
			}

			certs := sink.Certificates()
			for _, id := range ingestion.DuplicateIDs(certs) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: certificate ID %s appears more than once\n", id)
			}

			if err := ingestion.WriteJSON(output, certs); err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), certs, preview)
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %d certificate(s) from %d file(s) to %s in %s\n",
				len(certs), report.FilesProcessed, output, time.Since(startTime).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultOutput, "JSON file to write")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on any invalid row")
	cmd.Flags().IntVar(&preview, "preview", defaultPreview, "records to print after converting, 0 for none")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "import <file|dir>",
		Short: "Import spreadsheets into the certificate database and export it",
		Long: `Import spreadsheets into the certificate database and export it.

Each file is committed on its own. When one file in a run cannot be read,
the rows of the other files are still stored and the command exits with an
error. The failed file is marked FATAL in the import ledger and is picked up
again by the next import.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dbManager, err := database.Connect(ctx, a.cfg.DatabaseURL, a.log)
			if err != nil {
				return err
			}
			defer dbManager.Close()

			report, err := ingestion.New(dbManager, *a.cfg, a.log).Execute(ctx, args[0], ingestion.NewDBSink(dbManager))
			if report != nil {
				printRowErrors(cmd.ErrOrStderr(), report)
				for _, skipped := range report.FilesSkipped {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s: already imported\n", filepath.Base(skipped))
				}
			}
			if err != nil {
				return err
			}

			count, err := ingestion.ExportMirror(ctx, dbManager, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d record(s) from %d file(s); %s now holds %d certificate(s)\n",
				report.Records, report.FilesProcessed, output, count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultOutput, "JSON file to write")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the certificate database to certificates-data.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dbManager, err := database.Connect(ctx, a.cfg.DatabaseURL, a.log)
			if err != nil {
				return err
			}
			defer dbManager.Close()

			count, err := ingestion.ExportMirror(ctx, dbManager, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d certificate(s) to %s\n", count, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultOutput, "JSON file to write")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the spreadsheet template organisers fill in",
		Args:  cobra.NoArgs,
		// needs neither config nor logger
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := parser.WriteTemplate(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultTemplate, "workbook to write")
	return cmd
}

// printPreview shows the first n certificates so the admin can spot a
// misread column before publishing.
func printPreview(w io.Writer, certs []models.Certificate, n int) {
	if n <= 0 || len(certs) == 0 {
		return
	}
	if n > len(certs) {
		n = len(certs)
	}

	rows := make([][]string, 0, n)
	for _, c := range certs[:n] {
		rows = append(rows, []string{c.Name, c.Email, c.TeamName, string(c.CertificateType), c.CertificateID})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "EMAIL", "TEAM", "TYPE", "CERTIFICATE ID").
		Rows(rows...)

	fmt.Fprintf(w, "Preview (first %d of %d):\n", n, len(certs))
	fmt.Fprintln(w, t.String())
}

func printRowErrors(w io.Writer, report *ingestion.Report) {
	for _, appErr := range report.Errors {
		if appErr.Fatal {
			continue
		}
		fmt.Fprintf(w, "Warning: %s\n", appErr.Error())
	}
}
