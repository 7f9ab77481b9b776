package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv              string
	Port                string
	DatabaseURL         string
	WorkerBin           string
	ProfilesDir         string
	ProcessRegistryPath string
	LogLevel            string
	LogFormat           string
	ForceReprepare      bool
	DetachWorkers       bool
	ProxyUsername       string
	ProxyPassword       string
	WorkerConfigJSON    string
	AddonURL            string
	WorkerExtraEnv      map[string]string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		WorkerBin:           getEnv("WORKER_BIN", ""),
		ProfilesDir:         getEnv("PROFILES_DIR", ""),
		ProcessRegistryPath: getEnv("PROCESS_REGISTRY_PATH", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		ProxyUsername:       getEnv("PROXY_USERNAME", ""),
		ProxyPassword:       getEnv("PROXY_PASSWORD", ""),
		WorkerConfigJSON:    getEnv("WORKER_CONFIG_JSON", ""),
		AddonURL:            getEnv("ADDON_URL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorkerBin == "" {
		return nil, fmt.Errorf("WORKER_BIN is required")
	}
	if cfg.ProfilesDir == "" {
		return nil, fmt.Errorf("PROFILES_DIR is required")
	}

	if cfg.ProcessRegistryPath == "" {
		cfg.ProcessRegistryPath = filepath.Join(cfg.ProfilesDir, "processes.json")
	}

	var err error
	if cfg.ForceReprepare, err = getBoolEnv("FORCE_REPREPARE", false); err != nil {
		return nil, err
	}
	if cfg.DetachWorkers, err = getBoolEnv("DETACH_WORKERS", true); err != nil {
		return nil, err
	}

	// Proxy credentials: both or neither
	if (cfg.ProxyUsername == "") != (cfg.ProxyPassword == "") {
		return nil, fmt.Errorf("PROXY_USERNAME and PROXY_PASSWORD must be set together")
	}

	if cfg.WorkerExtraEnv, err = getEnvMap("WORKER_EXTRA_ENV"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvMap parses comma-separated KEY=VALUE pairs, e.g.
// "MOZ_HEADLESS=1,TZ=UTC". An unset variable yields a nil map.
func getEnvMap(key string) (map[string]string, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}

	out := map[string]string{}
	for _, pair := range strings.Split(value, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%s must be comma-separated KEY=VALUE pairs, got %q", key, pair)
		}
		out[name] = val
	}
	return out, nil
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return parsed, nil
}
