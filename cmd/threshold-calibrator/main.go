package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/calibrate"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/factory"
	"github.com/mikey/promo-sweeper/internal/logging"
)

var (
	configFile   = flag.String("config", "", "Path to config file (used to locate the decision store)")
	inputFile    = flag.String("input", "", "JSON file of labeled outcomes (reads the decision store if not specified)")
	minPrecision = flag.Float64("min-precision", 0.99, "Minimum precision the recommended threshold must reach")
	thresholds   = flag.String("thresholds", "", "Comma-separated thresholds to evaluate (default 50..99)")
	outputFile   = flag.String("output", "", "Write the report to a file instead of stdout")
	jsonReport   = flag.Bool("json", false, "Write the report as JSON")
	showFP       = flag.Bool("show-false-positives", false, "List outcomes the recommended threshold would wrongly delete")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog      = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	points, err := parseThresholds(*thresholds)
	if err != nil {
		logger.Fatal("Invalid thresholds", zap.Error(err))
	}

	outcomes, err := loadOutcomes(context.Background(), logger)
	if err != nil {
		logger.Fatal("Failed to load labeled outcomes", zap.Error(err))
	}
	logger.Info("Loaded labeled outcomes", zap.Int("count", len(outcomes)))

	cal := calibrate.NewCalibrator(outcomes, logger)
	report, err := cal.BuildReport(points, *minPrecision)
	if err != nil {
		logger.Fatal("Failed to build report", zap.Error(err))
	}
	if !report.Recommended.Attainable {
		logger.Warn("Precision target not attainable", zap.String("warning", report.Recommended.Warning))
	}

	var out io.Writer = os.Stdout
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			logger.Fatal("Failed to create output file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	if *jsonReport {
		err = report.WriteJSON(out)
	} else {
		err = report.WriteText(out)
	}
	if err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}

	if *showFP {
		writeFalsePositives(out, cal.FalsePositives(report.Recommended.Analysis.Threshold), report.Recommended.Analysis.Threshold)
	}
}

func loadOutcomes(ctx context.Context, logger *zap.Logger) ([]core.LabeledOutcome, error) {
	if *inputFile != "" {
		return calibrate.LoadOutcomes(*inputFile)
	}

	cfg, err := config.NewWithFile(*configFile)
	if err != nil {
		return nil, err
	}
	stores := factory.NewStoreFactory(cfg, logger)
	if err := stores.RequirePersistent(); err != nil {
		return nil, err
	}
	repo, err := stores.CreateDecisionRepository()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closer, ok := repo.(interface{ Close() error }); ok {
			closer.Close()
		}
		if stopper, ok := repo.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}()
	return repo.LabeledOutcomes(ctx)
}

// parseThresholds parses a list like "80,85,90". Empty means the default sweep.
func parseThresholds(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return calibrate.DefaultThresholds(), nil
	}
	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("bad threshold %q: %w", field, err)
		}
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("threshold %v is outside [0,100]", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no thresholds in %q", s)
	}
	return out, nil
}

func writeFalsePositives(w io.Writer, fps []core.LabeledOutcome, threshold float64) {
	fmt.Fprintf(w, "\nFalse positives at %.1f%%: %d\n", threshold, len(fps))
	for _, o := range fps {
		fmt.Fprintf(w, "  %s\tconfidence %.1f%%\tactual %s\n", o.MessageID, o.Confidence, o.Actual)
	}
}
