package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhash0x/agentnet/internal/alerting"
	"github.com/subhash0x/agentnet/internal/config"
	"github.com/subhash0x/agentnet/internal/dispatch"
	"github.com/subhash0x/agentnet/internal/hcs"
	"github.com/subhash0x/agentnet/internal/oracle"
	"github.com/subhash0x/agentnet/internal/scheduler"
	"github.com/subhash0x/agentnet/internal/service"
	"github.com/subhash0x/agentnet/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newPriceSource builds the configured provider chain.
func (a *App) newPriceSource() oracle.PriceSource {
	ocfg := a.Config.Oracle

	sources := make([]oracle.PriceSource, 0, len(ocfg.Providers))
	for _, provider := range ocfg.Providers {
		switch strings.ToLower(strings.TrimSpace(provider)) {
		case "coingecko":
			sources = append(sources, oracle.NewCoinGecko(oracle.CoinGeckoOptions{
				BaseURL:   ocfg.CoinGecko.BaseURL,
				AssetID:   ocfg.CoinGecko.AssetID,
				Timeout:   ocfg.RequestTimeout,
				UserAgent: ocfg.UserAgent,
			}, a.Logger))
		case "pyth":
			sources = append(sources, oracle.NewPyth(oracle.PythOptions{
				BaseURL:   ocfg.Pyth.BaseURL,
				FeedID:    ocfg.Pyth.FeedID,
				Timeout:   ocfg.RequestTimeout,
				UserAgent: ocfg.UserAgent,
			}, a.Logger))
		case "chainlink":
			sources = append(sources, oracle.NewChainlink(oracle.ChainlinkOptions{
				RPCURL:            ocfg.Chainlink.RPCURL,
				AggregatorAddress: ocfg.Chainlink.AggregatorAddress,
				Timeout:           ocfg.RequestTimeout,
			}, a.Logger))
		}
	}

	if len(sources) == 1 {
		return sources[0]
	}
	return oracle.NewFallback(a.Logger, sources...)
}

// newPublisher wires the Hedera consensus-service publisher.
func (a *App) newPublisher() (*hcs.Publisher, error) {
	hcfg := a.Config.Hedera
	client, err := hcs.NewClient(hcs.ClientOptions{
		Network:     hcfg.Network,
		OperatorID:  hcfg.OperatorID,
		OperatorKey: hcfg.OperatorKey,
	})
	if err != nil {
		return nil, err
	}
	return hcs.NewPublisher(client, hcs.PublisherOptions{Timeout: hcfg.RequestTimeout}, a.Logger), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newMonitor(repo dispatch.AlertRepository, source oracle.PriceSource, publisher dispatch.SignalPublisher, recorder dispatch.SignalRecorder) *dispatch.Monitor {
	dcfg := a.Config.Dispatch
	if !dcfg.RecordSignals {
		recorder = nil
	}
	return dispatch.NewMonitor(repo, source, publisher, recorder, dispatch.Options{
		Topics:             a.Config.Hedera.Topics,
		Workers:            dcfg.Workers,
		DefaultCooldown:    dcfg.DefaultCooldown,
		PublishTimeout:     dcfg.PublishTimeout,
		RepositoryTimeout:  dcfg.RepositoryTimeout,
		TopicProvisionMemo: dcfg.TopicProvisionMemo,
	}, a.Logger)
}

// Run executes the long-running dispatch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := a.newPublisher()
	if err != nil {
		return fmt.Errorf("configure publisher: %w", err)
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	monitor := a.newMonitor(store, a.newPriceSource(), publisher, store)
	svc := service.New(a.Config, sched, monitor, a.newNotifier(), store, a.Logger)

	a.Logger.Info().Msg("starting dispatch service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("dispatch service stopped")
	return nil
}

// ExportOptions hold parameters for exporting signal history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
