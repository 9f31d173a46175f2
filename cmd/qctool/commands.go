package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
	"github.com/listenupapp/mediaqc-server/internal/logger"
	"github.com/listenupapp/mediaqc-server/internal/media"
	"github.com/listenupapp/mediaqc-server/internal/qc"
	"github.com/listenupapp/mediaqc-server/internal/service"
)

type rootOptions struct {
	logLevel string
	locale   string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "qctool",
		Short:         "Group media directories and merge QC sheets offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.locale, "locale", "und", "BCP 47 locale used to collate names")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Give up after this long")

	root.AddCommand(newGroupsCmd(opts), newExportCmd(opts))
	return root
}

func (o *rootOptions) logger(w io.Writer) (*logger.Logger, error) {
	if !logger.ValidLevel(o.logLevel) {
		return nil, fmt.Errorf("invalid log level %q", o.logLevel)
	}
	return logger.New(logger.Config{
		Writer:      w,
		Level:       logger.ParseLevel(o.logLevel),
		Environment: "development",
	}), nil
}

// scan walks dir into a fresh grouping engine.
func (o *rootOptions) scan(ctx context.Context, log *slog.Logger, dir string, mode string) (*grouping.Engine, grouping.IngestStats, error) {
	locale, err := language.Parse(o.locale)
	if err != nil {
		return nil, grouping.IngestStats{}, fmt.Errorf("invalid locale %q: %w", o.locale, err)
	}

	engine := grouping.NewEngine(log, grouping.Options{Locale: locale})
	if mode != "" {
		m := domain.GroupMode(mode)
		if !m.Valid() {
			return nil, grouping.IngestStats{}, fmt.Errorf("invalid group mode %q", mode)
		}
		engine.SetGroupMode(m)
	}

	files, err := media.NewScanner(log, media.NewRegistry()).Scan(ctx, dir)
	if err != nil {
		return nil, grouping.IngestStats{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	return engine, engine.Ingest(files), nil
}

type groupsOptions struct {
	mode      string
	selection []string
}

type groupsReport struct {
	Stats     grouping.IngestStats     `json:"stats"`
	Subjects  []domain.SubjectSessions `json:"subjects"`
	FileNames []string                 `json:"file_names"`
	Mode      domain.GroupMode         `json:"mode"`
	Groups    []domain.VideoGroup      `json:"groups"`
}

func newGroupsCmd(root *rootOptions) *cobra.Command {
	opts := &groupsOptions{}

	cmd := &cobra.Command{
		Use:   "groups <dir>",
		Short: "Print the subjects, sessions and groups found below a directory",
		Long: `Scans dir the same way the server scans MEDIA_ROOT and prints the
grouping as JSON. Without --select every file name is selected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroups(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", string(domain.GroupBySubjectSession), "Grouping mode (subject, subject-session)")
	cmd.Flags().StringSliceVar(&opts.selection, "select", nil, "File names to select (repeatable)")
	return cmd
}

func runGroups(cmd *cobra.Command, root *rootOptions, opts *groupsOptions, dir string) error {
	log, err := root.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
	defer cancel()

	engine, stats, err := root.scan(ctx, log.Component("scan"), dir, opts.mode)
	if err != nil {
		return err
	}

	selection := opts.selection
	if len(selection) == 0 {
		selection = engine.UniqueFileNames()
	}
	engine.SetSelection(selection)

	report := groupsReport{
		Stats:     stats,
		Subjects:  engine.SortedView(),
		FileNames: engine.UniqueFileNames(),
		Mode:      engine.GroupMode(),
		Groups:    engine.GroupedVideos(),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type exportOptions struct {
	csvPath    string
	presetPath string
	variables  []string
	enable     bool
}

func newExportCmd(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Merge a QC sheet with computed entries and print it as CSV",
		Long: `Imports a QC sheet, applies the variables given with --var or
--preset, waits for entries to be computed and prints the exported sheet.

Variables are given as name:type, for example --var Pain:pass-fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "QC sheet to import (required)")
	cmd.Flags().StringVar(&opts.presetPath, "preset", "", "YAML variable preset")
	cmd.Flags().StringArrayVar(&opts.variables, "var", nil, "Variable as name:type (repeatable)")
	cmd.Flags().BoolVar(&opts.enable, "enable", true, "Switch quality control on before exporting")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runExport(cmd *cobra.Command, root *rootOptions, opts *exportOptions) error {
	log, err := root.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	vars, err := exportVariables(opts)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.csvPath)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
	defer cancel()

	ledger := qc.NewLedger(log.Component("qc"), qc.Options{})
	ledger.ImportCSV(string(data))
	ledger.ReplaceVariables(vars)
	if opts.enable && !ledger.Enabled() {
		ledger.ToggleQualityControl()
	}

	if err := ledger.Idle(ctx); err != nil {
		return fmt.Errorf("waiting for entries: %w", err)
	}

	_, err = io.WriteString(cmd.OutOrStdout(), ledger.ExportCSV()+"\n")
	return err
}

// exportVariables combines the preset with --var flags, preset first.
func exportVariables(opts *exportOptions) ([]domain.QCVariable, error) {
	var vars []domain.QCVariable

	if opts.presetPath != "" {
		data, err := os.ReadFile(opts.presetPath)
		if err != nil {
			return nil, fmt.Errorf("read preset: %w", err)
		}
		preset, err := service.ParsePreset(data)
		if err != nil {
			return nil, err
		}
		for _, v := range preset.Variables {
			vars = append(vars, domain.QCVariable{Name: v.Name, Type: v.Type})
		}
	}

	for _, raw := range opts.variables {
		v, err := parseVariableFlag(raw)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// parseVariableFlag parses "name:type". The type may be omitted.
func parseVariableFlag(raw string) (domain.QCVariable, error) {
	name, typ, _ := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.QCVariable{}, fmt.Errorf("invalid --var %q: missing name", raw)
	}
	return domain.QCVariable{Name: name, Type: strings.TrimSpace(typ)}, nil
}
