package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/helixml/tileqc"
	"github.com/helixml/tileqc/application/service"
	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/selection"
	"github.com/helixml/tileqc/infrastructure/api"
	"github.com/helixml/tileqc/internal/config"
	"github.com/helixml/tileqc/internal/log"
)

type analyzeFlags struct {
	modules         []string
	output          string
	failedOutput    string
	exportSelection string
	metricsAddr     string
}

func analyzeCmd() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyse a FASTQ file and optionally mask low quality regions",
		Long: `Analyse a FASTQ file (plain or gzip) and optionally mask low quality regions.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  TILEQC_MATRIX_SIZE           Bins per matrix side (default: 10)
  TILEQC_QUALITY_THRESHOLD     Low quality score threshold (default: 20)
  TILEQC_READ_RATE             Analyse every n-th read; above 1 disables caching (default: 1)
  TILEQC_USE_CACHE             Use the result cache (default: true)
  TILEQC_CLEAR_METHOD          Masking output: none, delete, change (default: none)
  TILEQC_SELECTION_METHOD      Masking selection: auto, user, file (default: auto)
  TILEQC_SELECTION_FILE        Selection document for the file method
  TILEQC_RED_AREA_RATIO        Low quality ratio selected by auto (default: 0.5)
  TILEQC_MAPPING_THRESHOLDS    Mapping quality cut-offs (default: 0,10,20,30)
  TILEQC_CACHE_DIR             Cache directory (default: ~/.tileqc/cache)
  TILEQC_CACHE_MAX_SIZE_BYTES  Cache size cap (default: 1073741824)
  TILEQC_CACHE_EXPIRATION      Cache blob expiration age (default: 720h)
  TILEQC_LOG_LEVEL             Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  TILEQC_LOG_FORMAT            Log format: pretty, json (default: pretty)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.Int("matrix-size", config.DefaultMatrixSize, "Bins per matrix side")
	f.Int("quality-threshold", config.DefaultQualityThreshold, "Low quality score threshold")
	f.Int("read-rate", config.DefaultReadRate, "Analyse every n-th read")
	f.Bool("no-cache", false, "Do not read or write the result cache")
	f.String("clear-method", string(selection.ClearNone), "Masking output: none, delete, change")
	f.String("selection-method", string(selection.MethodAuto), "Masking selection: auto, file")
	f.String("selection-file", "", "Selection document for the file method")
	f.Float64("red-area-ratio", config.DefaultRedAreaRatio, "Low quality ratio selected by auto")
	f.String("cache-dir", "", "Cache directory")
	f.StringSliceVar(&flags.modules, "modules", nil, "Modules to run (default: all)")
	f.StringVar(&flags.output, "output", "", "Masked output file (default: <input>.masked.fastq)")
	f.StringVar(&flags.failedOutput, "failed-output", "", "Failed reads of the delete method (default: <input>.failed.fastq)")
	f.StringVar(&flags.exportSelection, "export-selection", "", "Write the masking selection to this file")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve /metrics, /status and /healthz on this address while running")

	return cmd
}

// applyAnalyzeOverrides applies the flags set on the command line.
func applyAnalyzeOverrides(cmd *cobra.Command, cfg config.AppConfig) (config.AppConfig, error) {
	f := cmd.Flags()
	var opts []config.AppConfigOption

	if f.Changed("matrix-size") {
		v, _ := f.GetInt("matrix-size")
		opts = append(opts, config.WithMatrixSize(v))
	}
	if f.Changed("quality-threshold") {
		v, _ := f.GetInt("quality-threshold")
		opts = append(opts, config.WithQualityThreshold(v))
	}
	if f.Changed("read-rate") {
		v, _ := f.GetInt("read-rate")
		opts = append(opts, config.WithReadRate(v))
	}
	if f.Changed("no-cache") {
		v, _ := f.GetBool("no-cache")
		opts = append(opts, config.WithUseCache(!v))
	}
	if f.Changed("clear-method") {
		v, _ := f.GetString("clear-method")
		m, err := selection.ParseClearMethod(strings.ToLower(v))
		if err != nil {
			return cfg, err
		}
		opts = append(opts, config.WithClearMethod(m))
	}
	if f.Changed("selection-method") {
		v, _ := f.GetString("selection-method")
		m, err := selection.ParseMethod(strings.ToLower(v))
		if err != nil {
			return cfg, err
		}
		opts = append(opts, config.WithSelectionMethod(m))
	}
	if f.Changed("selection-file") {
		v, _ := f.GetString("selection-file")
		opts = append(opts, config.WithSelectionFile(v))
	}
	if f.Changed("red-area-ratio") {
		v, _ := f.GetFloat64("red-area-ratio")
		opts = append(opts, config.WithRedAreaRatio(v))
	}
	if f.Changed("cache-dir") {
		v, _ := f.GetString("cache-dir")
		opts = append(opts, config.WithCacheDir(v))
	}

	cfg = cfg.Apply(opts...)
	if cfg.SelectionMethod() == selection.MethodUser && cfg.ClearMethod() != selection.ClearNone {
		return cfg, errors.New("the user selection method needs an interactive caller; use auto or file")
	}
	return cfg, cfg.Validate()
}

func runAnalyze(cmd *cobra.Command, path string, flags analyzeFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err = applyAnalyzeOverrides(cmd, cfg)
	if err != nil {
		return err
	}

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []tileqc.Option{
		tileqc.WithAppConfig(cfg),
		tileqc.WithLogger(slogger),
	}

	if flags.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		board := api.NewStatusBoard()
		server := api.NewServer(flags.metricsAddr, slogger)
		api.Mount(server.Router(), reg, board)
		go func() {
			if err := server.Start(); err != nil {
				slogger.Error("monitoring server stopped", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slogger.Error("shutdown error", slog.Any("error", err))
			}
		}()
		opts = append(opts, tileqc.WithMetricsRegisterer(reg), tileqc.WithReporters(board))
	}

	attrs := append([]slog.Attr{slog.String("version", version), slog.String("input", path)}, cfg.LogAttrs()...)
	slogger.LogAttrs(ctx, slog.LevelInfo, "starting tileqc", attrs...)

	client, err := tileqc.New(opts...)
	if err != nil {
		return fmt.Errorf("create tileqc client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close tileqc client", slog.Any("error", err))
		}
	}()

	var analyzeOpts []tileqc.AnalyzeOption
	if len(flags.modules) > 0 {
		tags := make([]analysis.Tag, 0, len(flags.modules))
		for _, m := range flags.modules {
			tags = append(tags, analysis.Tag(strings.TrimSpace(m)))
		}
		analyzeOpts = append(analyzeOpts, tileqc.WithModules(tags...))
	}
	if flags.output != "" || flags.failedOutput != "" {
		analyzeOpts = append(analyzeOpts, tileqc.WithOutputs(flags.output, flags.failedOutput))
	}

	result, err := client.Analyze(ctx, path, analyzeOpts...)
	var maskErr *service.MaskingError
	if err != nil && !errors.As(err, &maskErr) {
		return err
	}
	printSummary(cmd.OutOrStdout(), result)

	if flags.exportSelection != "" && result.Masking != nil {
		if exportErr := exportSelection(client, result, flags.exportSelection); exportErr != nil {
			return errors.Join(err, exportErr)
		}
	}
	return err
}

func exportSelection(client *tileqc.Client, result service.Result, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create selection file: %w", err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	return client.ExportSelection(result, f)
}

func printSummary(w io.Writer, res service.Result) {
	if res.Tree == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "run %s\n", res.RunID)
	_, _ = fmt.Fprintf(w, "  numeration: %s\n", res.Tree.Numeration().Name())
	_, _ = fmt.Fprintf(w, "  records:    %d (%d malformed)\n", res.Tree.Records(), res.Malformed)
	_, _ = fmt.Fprintf(w, "  from cache: %t\n", res.FromCache)

	for _, m := range res.Modules {
		mats, ok := m.(analysis.Matrices)
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %-16s matrices=%d max_density=%d\n", m.Tag(), len(mats.Keys()), mats.MaxDensity())
	}

	if res.Masking == nil {
		return
	}
	s := res.Masking.Summary
	_, _ = fmt.Fprintf(w, "  masking:    %d reads, %d changed, %d bases\n", s.Reads, s.ReadsChanged, s.BasesChanged)
	if mod, ok := res.Module(analysis.TagBaseQuality); ok {
		if set, ok := mod.(selection.MatrixSet); ok {
			for _, c := range res.Tree.Coordinates() {
				if state := selection.TileState(set, c); state != matrix.SelectionNone {
					_, _ = fmt.Fprintf(w, "    %s %s\n", c, state)
				}
			}
		}
	}
	if imp := res.Masking.Import; imp != nil && len(imp.Missing) > 0 {
		_, _ = fmt.Fprintf(w, "  selection entries without a matrix: %d\n", len(imp.Missing))
	}
}
