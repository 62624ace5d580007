package configs

import (
	"flag"
	"os"

	"github.com/se360/notification-service/internal/infrastructure/env"
)

// DetermineConfigPath returns the first config file found, or "" when the
// service should run on defaults and environment variables alone.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("NOTIFICATION_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"/etc/notification-service/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
