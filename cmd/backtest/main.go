// Package main is the entry point for the options backtest engine.
//
// It loads the run configuration, wires the data store, outcome model
// and event sinks into the simulation driver, runs the configured date
// range and prints the performance summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raftroch1/0dte-sub001/internal/data"
	"github.com/raftroch1/0dte-sub001/internal/engine"
	"github.com/raftroch1/0dte-sub001/internal/events"
	"github.com/raftroch1/0dte-sub001/internal/lifecycle"
	"github.com/raftroch1/0dte-sub001/internal/metrics"
	"github.com/raftroch1/0dte-sub001/internal/outcome"
	"github.com/raftroch1/0dte-sub001/internal/report"
	"github.com/raftroch1/0dte-sub001/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (defaults apply when omitted)")
	dataDir := flag.String("data", "./data", "Market data directory")
	startStr := flag.String("start", "", "Override start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Override end date (YYYY-MM-DD)")
	tradesPath := flag.String("trades", "", "Write the trade log CSV to this path")
	eventsPath := flag.String("events", "", "Write the JSONL event stream to this path")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	resampleSeed := flag.Int64("resample-seed", 0, "Bootstrap the trade sequence with this seed (0 disables)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := overrideDates(cfg, *startStr, *endStr); err != nil {
		logger.Fatal("Invalid date override", zap.Error(err))
	}
	if cfg.StartDate.IsZero() || cfg.EndDate.IsZero() {
		logger.Fatal("start and end dates are required (config or -start/-end)")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting backtest",
		zap.String("underlying", cfg.Underlying),
		zap.String("start", cfg.StartDate.Format("2006-01-02")),
		zap.String("end", cfg.EndDate.Format("2006-01-02")),
		zap.String("outcomeModel", cfg.OutcomeModel),
		zap.String("initialBalance", cfg.InitialBalance.StringFixed(2)),
	)

	store, err := data.NewFileStore(logger.Named("data"), *dataDir)
	if err != nil {
		logger.Fatal("Failed to open data store", zap.Error(err))
	}

	var model outcome.Model
	switch cfg.OutcomeModel {
	case "statistical":
		model = outcome.NewStatisticalModel(logger.Named("outcome"), cfg.StatSeed, 0)
	default:
		model = outcome.NewPricingModel()
	}

	sinks := events.Multi{events.NewZapSink(logger.Named("events"))}
	if *eventsPath != "" {
		f, err := os.Create(*eventsPath)
		if err != nil {
			logger.Fatal("Failed to create event stream file", zap.Error(err))
		}
		defer f.Close()
		sinks = append(sinks, events.NewJSONLSink(f))
	}
	if *tradesPath != "" {
		f, err := os.Create(*tradesPath)
		if err != nil {
			logger.Fatal("Failed to create trade log file", zap.Error(err))
		}
		defer f.Close()
		sinks = append(sinks, events.NewCSVTradeLog(f))
	}

	driver, err := engine.New(logger.Named("engine"), cfg, store, model, sinks, metrics.New())
	if err != nil {
		logger.Fatal("Failed to build engine", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := driver.Run(ctx)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvariant) {
			logger.Error("Run aborted on lifecycle invariant violation", zap.Error(err))
			os.Exit(2)
		}
		logger.Fatal("Run failed", zap.Error(err))
	}

	printSummary(result)

	if *resampleSeed != 0 {
		balance, _ := cfg.InitialBalance.Float64()
		robustness, err := report.Resample(logger.Named("report"), result.Closed, balance,
			report.DefaultResampleConfig(*resampleSeed))
		if err != nil {
			logger.Warn("Resample skipped", zap.Error(err))
			return
		}
		printRobustness(robustness)
	}
}

// fileConfig mirrors types.BacktestConfig with file-friendly scalar
// types; absent keys keep the defaults it is seeded with.
type fileConfig struct {
	ID             string   `mapstructure:"id"`
	Underlying     string   `mapstructure:"underlying"`
	StartDate      string   `mapstructure:"start_date"`
	EndDate        string   `mapstructure:"end_date"`
	InitialBalance float64  `mapstructure:"initial_balance"`
	Checkpoints    []string `mapstructure:"checkpoints"`
	EntryStart     string   `mapstructure:"entry_start"`
	EntryEnd       string   `mapstructure:"entry_end"`
	ForceCloseAt   string   `mapstructure:"force_close_at"`
	TargetHoldDays int      `mapstructure:"target_hold_days"`
	MaxHoldDays    int      `mapstructure:"max_hold_days"`
	MinVolume      float64  `mapstructure:"min_volume"`
	MaxVolatility  float64  `mapstructure:"max_volatility"`
	OutcomeModel   string   `mapstructure:"outcome_model"`
	StatSeed       int64    `mapstructure:"stat_seed"`

	RiskLimits types.RiskLimits   `mapstructure:"risk_limits"`
	Sizing     types.SizingConfig `mapstructure:"sizing"`
}

// loadConfig reads the YAML run configuration over the built-in
// defaults. An empty path returns the defaults untouched.
func loadConfig(path string) (*types.BacktestConfig, error) {
	def := types.DefaultBacktestConfig()
	balance, _ := def.InitialBalance.Float64()
	fc := fileConfig{
		ID:             def.ID,
		Underlying:     def.Underlying,
		InitialBalance: balance,
		Checkpoints:    def.Checkpoints,
		EntryStart:     def.EntryStart,
		EntryEnd:       def.EntryEnd,
		ForceCloseAt:   def.ForceCloseAt,
		TargetHoldDays: def.TargetHoldDays,
		MaxHoldDays:    def.MaxHoldDays,
		MinVolume:      def.MinVolume,
		MaxVolatility:  def.MaxVolatility,
		OutcomeModel:   def.OutcomeModel,
		StatSeed:       def.StatSeed,
		RiskLimits:     def.RiskLimits,
		Sizing:         def.Sizing,
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(&fc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := &types.BacktestConfig{
		ID:             fc.ID,
		Underlying:     fc.Underlying,
		InitialBalance: decimal.NewFromFloat(fc.InitialBalance),
		Checkpoints:    fc.Checkpoints,
		EntryStart:     fc.EntryStart,
		EntryEnd:       fc.EntryEnd,
		ForceCloseAt:   fc.ForceCloseAt,
		TargetHoldDays: fc.TargetHoldDays,
		MaxHoldDays:    fc.MaxHoldDays,
		MinVolume:      fc.MinVolume,
		MaxVolatility:  fc.MaxVolatility,
		OutcomeModel:   fc.OutcomeModel,
		StatSeed:       fc.StatSeed,
		RiskLimits:     fc.RiskLimits,
		Sizing:         fc.Sizing,
	}
	for _, field := range []struct {
		s   string
		dst *time.Time
	}{{fc.StartDate, &cfg.StartDate}, {fc.EndDate, &cfg.EndDate}} {
		if field.s == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", field.s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", field.s, err)
		}
		*field.dst = t
	}
	return cfg, nil
}

func overrideDates(cfg *types.BacktestConfig, start, end string) error {
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return err
		}
		cfg.StartDate = t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return err
		}
		cfg.EndDate = t
	}
	return nil
}

func printSummary(result *engine.Result) {
	s := result.Summary
	p := result.Performance

	fmt.Println()
	fmt.Println("=== Backtest Summary ===")
	fmt.Printf("Days traded:      %d (skipped %d)\n", s.DaysTraded, s.DaysSkipped)
	fmt.Printf("Positions:        %d opened / %d closed\n", s.Opened, s.Closed)
	fmt.Printf("Start balance:    $%s\n", s.StartBalance.StringFixed(2))
	fmt.Printf("End balance:      $%s\n", s.EndBalance.StringFixed(2))
	fmt.Printf("Total P&L:        $%s\n", s.TotalPnL.StringFixed(2))
	if p.TotalTrades > 0 {
		fmt.Printf("Win rate:         %s%%\n", p.WinRate.Mul(decimal.NewFromInt(100)).StringFixed(1))
		fmt.Printf("Profit factor:    %s\n", p.ProfitFactor.StringFixed(2))
		fmt.Printf("Expectancy:       $%s\n", p.Expectancy.StringFixed(2))
		fmt.Printf("Sharpe ratio:     %s\n", p.SharpeRatio.StringFixed(2))
		fmt.Printf("Max drawdown:     %s%%\n", p.MaxDrawdown.Mul(decimal.NewFromInt(100)).StringFixed(2))
		fmt.Println("Exits by reason:")
		for reason, n := range p.ExitsByReason {
			fmt.Printf("  %-14s %d\n", reason, n)
		}
	}
}

func printRobustness(r *report.Robustness) {
	fmt.Println()
	fmt.Printf("=== Trade-Order Bootstrap (%d runs) ===\n", r.Runs)
	fmt.Printf("Final balance:    mean $%.2f, p05 $%.2f, p50 $%.2f, p95 $%.2f\n",
		r.MeanFinal, r.P05Final, r.P50Final, r.P95Final)
	fmt.Printf("Max drawdown:     mean %.2f%%, p95 %.2f%%\n",
		r.MeanMaxDrawdown*100, r.P95MaxDrawdown*100)
	fmt.Printf("P(ruin):          %.2f%%\n", r.ProbabilityOfRuin*100)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
