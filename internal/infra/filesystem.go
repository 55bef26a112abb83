package infra

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/config"
)

// GetWorkDir returns the bot's dot directory, creating it on first use.
func GetWorkDir() string {
	path := config.Get().DotPath
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.WithField("error", err.Error()).WithField("path", path).Fatalln("cant create work dir")
	}
	return path
}
