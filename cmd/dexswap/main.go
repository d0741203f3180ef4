// Package main is the entry point for the dexswap client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/dexswap/business/quote"
	quoteDI "github.com/fd1az/dexswap/business/quote/di"
	"github.com/fd1az/dexswap/business/trade"
	tradeApp "github.com/fd1az/dexswap/business/trade/app"
	tradeDI "github.com/fd1az/dexswap/business/trade/di"
	"github.com/fd1az/dexswap/business/trade/infra/console"
	"github.com/fd1az/dexswap/business/trade/infra/tui"
	"github.com/fd1az/dexswap/business/wallet"
	walletDI "github.com/fd1az/dexswap/business/wallet/di"
	"github.com/fd1az/dexswap/internal/apm"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/config"
	"github.com/fd1az/dexswap/internal/health"
	"github.com/fd1az/dexswap/internal/httpclient"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/metrics"
	"github.com/fd1az/dexswap/internal/monolith"
	"github.com/fd1az/dexswap/internal/tokenlist"
	"github.com/fd1az/dexswap/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run the line-oriented CLI instead of the TUI")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexswap %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, !*cliMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// The TUI owns the terminal, so logs are discarded there.
	var logOut io.Writer = os.Stderr
	if tuiMode {
		logOut = io.Discard
	}
	log := logger.New(logOut, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	defer func() { _ = log.Sync() }()

	log.Info(ctx, "starting dexswap", "version", version, "environment", cfg.App.Environment)

	shutdown, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shutdown()

	registry := asset.DefaultRegistry(cfg.Tokens.ChainID)
	if err := loadTokens(ctx, cfg.Tokens, registry, log); err != nil {
		return err
	}

	mono, err := monolith.New(cfg, log, registry)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&quote.Module{},  // estimator and price feed
		&wallet.Module{}, // connects the configured adapter
		&trade.Module{},  // controllers over both
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := mono.StartModules(runCtx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	if cfg.Health.Enabled {
		hs := newHealthServer(cfg, mono, log)
		if err := hs.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
		}
		defer stopWithTimeout(hs.Stop)
	}

	controllers := tradeDI.GetControllers(mono.Services())
	if tuiMode {
		return runTUI(runCtx, cancel, mono, controllers)
	}

	sess := &session{
		controllers: controllers,
		tokens:      registry,
		settings:    mono.Settings(),
		out:         os.Stdout,
		channel:     controllers.All()[0].Channel(),
	}
	reporter := console.NewReporter(os.Stdout)
	for _, c := range controllers.All() {
		defer c.Subscribe(reporter)()
	}
	return runCLI(runCtx, cancel, os.Stdin, sess)
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tp, err := apm.NewTraceProvider(ctx, log, apm.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Exporter:    cfg.Telemetry.TraceExporter,
		Endpoint:    traceEndpoint(cfg.Telemetry),
		Insecure:    cfg.Telemetry.OTLPInsecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Writer:      os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	provider := metrics.ProviderCfg{Provider: metrics.PrometheusProvider}
	if cfg.Telemetry.MetricsExporter == string(metrics.OtelCollector) {
		provider = metrics.NewOtelCollectorConfig(cfg.Telemetry.OTLPEndpoint, nil, cfg.Telemetry.OTLPInsecure)
	}
	mp, err := metrics.NewMetricProvider(ctx,
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(provider),
	)
	if err != nil {
		_ = tp.Stop()
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	var promServer *metrics.Server
	if provider.Provider == metrics.PrometheusProvider {
		promServer = metrics.NewServer(log, metrics.WithPort(cfg.Telemetry.PrometheusPort))
		promServer.Start()
	}

	return func() {
		if promServer != nil {
			stopWithTimeout(promServer.Stop)
		}
		stopWithTimeout(mp.Shutdown)
		_ = tp.Stop()
	}, nil
}

func traceEndpoint(t config.TelemetryConfig) string {
	if t.TraceExporter == apm.ExporterZipkin {
		return t.ZipkinURL
	}
	return t.OTLPEndpoint
}

// loadTokens fetches the configured lists concurrently and registers them
// in a fixed order so duplicates resolve the same way every run.
func loadTokens(ctx context.Context, cfg config.TokensConfig, registry *asset.Registry, log logger.LoggerInterface) error {
	var sources []string
	for _, src := range []string{cfg.ListFile, cfg.ListURL} {
		if src != "" {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return nil
	}

	client, err := httpclient.New(
		httpclient.WithProviderName("tokenlist"),
		httpclient.WithRequestTimeout(cfg.FetchTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create http client: %w", err)
	}
	loader := tokenlist.NewLoader(client, log)

	lists := make([]tokenlist.List, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			list, err := loader.Load(gctx, src)
			if err != nil {
				return err
			}
			lists[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load token list: %w", err)
	}

	for i, list := range lists {
		added, skipped := tokenlist.Fill(registry, list)
		log.Info(ctx, "token list loaded", "source", sources[i], "name", list.Name, "added", added, "skipped", skipped)
	}
	return nil
}

func newHealthServer(cfg *config.Config, mono monolith.Monolith, log logger.LoggerInterface) *health.Server {
	hs := health.NewServer(cfg.Health.Port, version, log)

	svc := walletDI.GetService(mono.Services())
	hs.RegisterCheck("wallet", func(context.Context) (bool, string) {
		if !svc.Connected() {
			return false, svc.Name() + " disconnected"
		}
		return true, svc.Address()
	})

	registry := mono.AssetRegistry()
	hs.RegisterCheck("tokens", func(context.Context) (bool, string) {
		n := registry.Count()
		return n > 0, fmt.Sprintf("%d tokens", n)
	})

	if feed := quoteDI.GetPriceFeed(mono.Services()); feed != nil {
		hs.RegisterCheck("price_feed", func(context.Context) (bool, string) {
			if !feed.Connected() {
				return false, "reconnecting"
			}
			return true, "streaming"
		})
	}

	return hs
}

func runTUI(ctx context.Context, cancel context.CancelFunc, mono monolith.Monolith, controllers *tradeApp.Controllers) error {
	all := controllers.All()
	traders := make([]ui.Trader, 0, len(all))
	for _, c := range all {
		traders = append(traders, c)
	}

	p := tea.NewProgram(ui.New(ctx, mono.AssetRegistry(), traders...), tea.WithAltScreen(), tea.WithContext(ctx))

	reporter := tui.NewReporter(p)
	for _, c := range all {
		defer c.Subscribe(reporter)()
	}

	svc := walletDI.GetService(mono.Services())
	sendWallet := func(connected bool) {
		go p.Send(ui.ConnectionStatusMsg{Name: "wallet " + svc.Name(), Connected: connected})
	}
	svc.OnConnectionChange(sendWallet)
	sendWallet(svc.Connected())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reporter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func stopWithTimeout(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = stop(ctx)
}
