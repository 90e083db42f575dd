package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/linkrepo/internal/paths"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "LINKREPO"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyAgent         = "agent"
	cfgKeySyncStrategy  = "sync_strategy"
	cfgKeyBatchSize     = "batch_size"
	cfgKeyBatchInterval = "batch_interval"
	cfgKeyLogLevel      = "log_level"

	defaultLogLevel = "warn"
)

// envKeys are the keys that LINKREPO_* variables override. data_dir is
// resolved through internal/paths instead.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyAgent,
	cfgKeySyncStrategy,
	cfgKeyBatchSize,
	cfgKeyBatchInterval,
	cfgKeyLogLevel,
}

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	Backend      string `yaml:"backend"`
	Agent        string `yaml:"agent"`
	SyncStrategy string `yaml:"sync_strategy"`
	DataDir      string `yaml:"data_dir,omitempty"`
}

// loadConfig reads config.yaml from configDir. It creates the directory and
// a default config.yaml on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyAgent, types.DefaultAgent)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyBatchSize, types.DefaultBatchSize)
	v.SetDefault(cfgKeyBatchInterval, types.DefaultBatchInterval)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)

	v.SetEnvPrefix(envPrefix)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// overrideString sets key to value when value is non-empty.
func overrideString(v *viper.Viper, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile writes a default config.yaml when none exists. The
// default agent is a fresh UUIDv7, so each configuration gets its own root.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	agent, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate agent id: %w", err)
	}
	data, err := yaml.Marshal(configFile{
		Backend:      types.BackendSQLite,
		Agent:        agent.String(),
		SyncStrategy: types.SyncImmediate,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte("# linkrepo configuration\n"), data...), 0o644)
}
