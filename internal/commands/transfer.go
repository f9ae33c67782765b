package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/qbcopy-dev/qbcopy/internal/config"
	"github.com/qbcopy-dev/qbcopy/internal/mapping"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
	"github.com/qbcopy-dev/qbcopy/internal/report"
	"github.com/qbcopy-dev/qbcopy/internal/runlog"
	"github.com/qbcopy-dev/qbcopy/internal/transfer"
)

type transferOptions struct {
	configPath  string
	entities    []string
	mappingFile string
	reportPath  string
	logDir      string
	dryRun      bool
	verbose     bool
}

func newTransferCommand() *cobra.Command {
	opts := &transferOptions{}

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Copy entities from the source company to the target company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "credentials.yml", "path to credentials.yml")
	cmd.Flags().StringSliceVar(&opts.entities, "entities", nil, "entity types to copy (default: all, in dependency order)")
	cmd.Flags().StringVar(&opts.mappingFile, "mapping-file", "", "JSON file for persisting source-to-target ID mappings")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write an XLSX report to this path")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "directory for the per-record CSV run log")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "match and resolve entities without creating anything")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func runTransfer(ctx context.Context, cmd *cobra.Command, opts *transferOptions) error {
	log := newLogger(cmd.ErrOrStderr(), opts.verbose)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if len(opts.entities) > 0 {
		cfg.Transfer.Entities = opts.entities
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	entities, err := cfg.Entities()
	if err != nil {
		return err
	}

	source := newCompanyClient(cfg, &cfg.Source, opts.configPath, log)
	target := newCompanyClient(cfg, &cfg.Target, opts.configPath, log)

	store := mapping.NewStore()
	if opts.mappingFile != "" {
		if err := store.Load(opts.mappingFile); err != nil {
			return err
		}
	}

	runner := transfer.NewRunner(source, target, store)
	runner.Log = log
	runner.DryRun = opts.dryRun
	if cfg.Retry.MaxAttempts > 0 {
		runner.Policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay > 0 {
		runner.Policy.BaseDelay = time.Duration(cfg.Retry.BaseDelay)
	}

	res, runErr := runner.Run(ctx, entities)

	// Persist run artifacts even when a phase aborted partway.
	writeArtifacts(res, store, opts, log)
	printSummary(cmd.OutOrStdout(), res, opts.dryRun)

	if runErr != nil {
		return runErr
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d records failed to transfer", len(failed))
	}
	return nil
}

func writeArtifacts(res *transfer.Result, store *mapping.Store, opts *transferOptions, log *slog.Logger) {
	now := time.Now()

	if opts.mappingFile != "" && !opts.dryRun {
		if err := store.Save(opts.mappingFile); err != nil {
			log.Error("saving id mappings", "path", opts.mappingFile, "error", err)
		}
	}

	if opts.logDir != "" {
		entries := make([]runlog.Entry, len(res.Records))
		for i, rec := range res.Records {
			entries[i] = runlog.FromRecord(rec, now)
		}
		if err := runlog.Append(opts.logDir, entries); err != nil {
			log.Error("writing run log", "dir", opts.logDir, "error", err)
		}
	}

	if opts.reportPath != "" {
		if err := report.Write(opts.reportPath, res.Records, res.Summaries, now); err != nil {
			log.Error("writing report", "path", opts.reportPath, "error", err)
		}
	}
}

func printSummary(w io.Writer, res *transfer.Result, dryRun bool) {
	if dryRun {
		fmt.Fprintln(w, "Dry run: nothing was created.")
	}
	for _, s := range res.Summaries {
		fmt.Fprintf(w, "%-12s created %d, already exists %d, failed %d\n",
			s.EntityType, s.Created, s.AlreadyExists, s.Failed)
	}
}

// newCompanyClient builds a client whose refreshed tokens are written back
// to credentials.yml.
func newCompanyClient(cfg *config.Config, company *config.Company, configPath string, log *slog.Logger) *qbo.Client {
	return qbo.New(cfg.ClientID, cfg.ClientSecret, *company,
		qbo.WithLogger(log),
		qbo.WithTokenSaver(func(access, refresh string) error {
			company.AccessToken = access
			company.RefreshToken = refresh
			return config.Save(configPath, cfg)
		}))
}
