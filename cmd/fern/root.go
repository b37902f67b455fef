package main

import (
	"errors"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/spf13/cobra"
)

type flags struct {
	backup      bool
	dryRun      bool
	doImport    bool
	rollback    string
	listBackups bool
	restore     string

	file       string
	password   string
	claimsFile string
	only       []string
	yes        bool
	skipBackup bool
	envFile    string
}

// options turns the parsed flags into run options. Exactly one mode flag
// must be set.
func (f flags) options() (app.Options, error) {
	opts := app.Options{
		File:       f.file,
		Password:   f.password,
		ClaimsFile: f.claimsFile,
		Only:       f.only,
		Yes:        f.yes,
		SkipBackup: f.skipBackup,
	}

	var modes []app.Mode
	if f.backup {
		modes = append(modes, app.ModeBackup)
	}
	if f.dryRun {
		modes = append(modes, app.ModeDryRun)
	}
	if f.doImport {
		modes = append(modes, app.ModeImport)
	}
	if f.rollback != "" {
		modes = append(modes, app.ModeRollback)
		opts.BatchID = f.rollback
	}
	if f.listBackups {
		modes = append(modes, app.ModeListBackups)
	}
	if f.restore != "" {
		modes = append(modes, app.ModeRestore)
		opts.Backup = f.restore
	}

	switch len(modes) {
	case 0:
		return opts, errors.New("choose a mode: --backup, --dry-run, --import, --rollback, --list-backups or --restore")
	case 1:
		opts.Mode = modes[0]
		return opts, nil
	default:
		return opts, errors.New("only one mode may be given")
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "fern",
		Short:         "Import an insurance portfolio workbook into the ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}

			var envFiles []string
			if f.envFile != "" {
				envFiles = append(envFiles, f.envFile)
			}
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}

			a, err := app.New(cfg, app.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			return a.Run(cmd.Context(), opts)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.backup, "backup", false, "Snapshot every table to BACKUP_DIR")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Parse the workbook and write previews without touching the store")
	fl.BoolVar(&f.doImport, "import", false, "Back up, confirm and import the workbook")
	fl.StringVar(&f.rollback, "rollback", "", "Delete every record of the given import batch")
	fl.BoolVar(&f.listBackups, "list-backups", false, "List snapshots, newest first")
	fl.StringVar(&f.restore, "restore", "", "Replace every table with the given snapshot")

	fl.StringVar(&f.file, "file", "", "Workbook to import (default EXCEL_FILE)")
	fl.StringVar(&f.password, "password", "", "Workbook password (default EXCEL_PASSWORD)")
	fl.StringVar(&f.claimsFile, "claims-file", "", "Separate claims workbook (default CLAIMS_FILE)")
	fl.StringSliceVar(&f.only, "only", nil, "Restrict the run to sheet kinds: inward, contracts, outward, slips, claims")
	fl.BoolVarP(&f.yes, "yes", "y", false, "Answer yes to every confirmation")
	fl.BoolVar(&f.skipBackup, "skip-backup", false, "Do not snapshot before a live import")
	fl.StringVar(&f.envFile, "env-file", "", "Load environment from this file instead of .env")

	cmd.MarkFlagsMutuallyExclusive("backup", "dry-run", "import", "rollback", "list-backups", "restore")
	return cmd
}
