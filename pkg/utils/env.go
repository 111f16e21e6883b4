package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadConfig reads a .env file from path (if present) into the process
// environment and primes viper so flags and env vars resolve uniformly.
func LoadConfig(path string) {
	envFile := filepath.Join(path, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logrus.Warnf("[CONFIG] Could not load %s: %v", envFile, err)
		}
	}

	viper.AutomaticEnv()
	viper.SetConfigFile(envFile)
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()
}
