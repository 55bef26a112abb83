package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string  `env:"TOKEN,required"`
		ChannelID        int64   `env:"CHANNEL_ID,required"`
		AdminIDs         []int64 `env:"ADMIN_IDS"`
		LogLevel         int     `env:"LOG_LEVEL,default=4"`
		DotPath          string  `env:"DOT_PATH,default=~/.tbocean"`
		RulesPath        string  `env:"RULES_PATH"`
		MetricsAddr      string  `env:"METRICS_ADDR,default=:2112"`
		Vision           Vision
		Moderation       Moderation
		Retention        Retention
	}

	Vision struct {
		APIKey              string  `env:"VISION_API_KEY"`
		Model               string  `env:"VISION_API_MODEL"`
		BaseURL             string  `env:"VISION_API_URL,default=https://api.openai.com/v1"`
		Type                string  `env:"VISION_API_TYPE,default=openai"`
		ConfidenceThreshold float64 `env:"VISION_CONFIDENCE_THRESHOLD,default=0.75"`
	}

	Moderation struct {
		BanThreshold      int `env:"BAN_THRESHOLD,default=3"`
		InitialTrustScore int `env:"INITIAL_TRUST_SCORE,default=50"`
	}

	Retention struct {
		RateLimitBatchSize int           `env:"RATE_LIMIT_BATCH_SIZE,default=20"`
		RateLimitPause     time.Duration `env:"RATE_LIMIT_PAUSE,default=1s"`
		AutoJobInterval    time.Duration `env:"AUTO_JOB_INTERVAL,default=10m"`
		ConfirmOverMinutes int           `env:"CONFIRM_OVER_MINUTES,default=180"`
		MinThresholdMin    int           `env:"MIN_THRESHOLD_MINUTES,default=5"`
		MinAutoThreshold   int           `env:"MIN_AUTO_THRESHOLD_MINUTES,default=10"`
		MaxThresholdMin    int           `env:"MAX_THRESHOLD_MINUTES,default=1440"`
		HistoryMaxAge      time.Duration `env:"HISTORY_MAX_AGE,default=48h"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("TBO_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		expanded, err := homedir.Expand(cfg.DotPath)
		if err != nil {
			globalErr = fmt.Errorf("expand dot path: %w", err)
			return
		}
		cfg.DotPath = expanded
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
