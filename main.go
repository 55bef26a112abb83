package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/adapters/vision"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/adapters/vision/gemini"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/adapters/vision/openai"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/bot"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/config"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/db/sqlite"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/handlers"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/infra"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/lifecycle"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/moderation"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.ConsoleFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Fatalln("cant init observability")
	}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		log.WithError(err).Fatalln("cant load moderation rules")
	}

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "bot.db")
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.WithError(err).Errorln("cant close database")
		}
	}()

	service := bot.NewService(botAPI, dbClient)
	transport := bot.NewChannelTransport(botAPI, cfg.AdminIDs)
	clock := moderation.SystemClock()

	ledger := moderation.NewLedger(cfg.Moderation.BanThreshold, cfg.Moderation.InitialTrustScore, dbClient, clock)
	classifier := moderation.NewClassifier(rules, buildAnalyzer(cfg.Vision), cfg.Vision.ConfidenceThreshold, func(err error) {
		transport.NotifyAdmins(context.Background(), "Image analysis unavailable, moderating on text only: "+err.Error())
	})
	deleter := moderation.NewDeleter(transport, dbClient, transport, clock, cfg.Retention.RateLimitBatchSize, cfg.Retention.RateLimitPause)
	scheduler := moderation.NewScheduler(dbClient, deleter, transport, clock, cfg.Retention, cfg.ChannelID)

	runtime := lifecycle.NewRuntime()
	runtime.Register("scheduler", scheduler)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start runtime")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Errorln("cant stop runtime cleanly")
		}
	}()

	// SIGHUP swaps in a fresh rule snapshot without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			reloaded, err := config.LoadRules(cfg.RulesPath)
			if err != nil {
				log.WithError(err).Errorln("cant reload rules, keeping current snapshot")
				continue
			}
			classifier.ReloadRules(reloaded)
			log.Infoln("moderation rules reloaded")
		}
	}()

	processor := bot.NewUpdateProcessor(service,
		handlers.NewAdmin(transport, scheduler, ledger, dbClient, cfg.ChannelID),
		handlers.NewModerator(transport, dbClient, deleter, classifier, ledger, cfg.ChannelID, cfg.Moderation.BanThreshold),
	)

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case err := <-errorChan:
				return errors.WithMessage(err, "bot api get updates error")
			case update := <-updateChan:
				if err := processor.Process(groupCtx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			}
		}
	})

	log.WithField("channel_id", cfg.ChannelID).Infoln("moderation online")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Errorln("update loop stopped")
	}
}

// buildAnalyzer picks the vision backend, or disables the image signal when
// no key is configured.
func buildAnalyzer(cfg config.Vision) vision.Analyzer {
	if cfg.APIKey == "" {
		log.Warnln("no vision api key, image moderation disabled")
		return nil
	}
	entry := log.WithField("context", "vision")
	switch cfg.Type {
	case "gemini":
		analyzer, err := gemini.NewAnalyzer(cfg.APIKey, cfg.Model, entry)
		if err != nil {
			log.WithError(err).Errorln("cant init gemini analyzer, image moderation disabled")
			return nil
		}
		return analyzer
	default:
		return openai.NewAnalyzer(cfg.APIKey, cfg.Model, cfg.BaseURL, entry)
	}
}
