package utils

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/horizon-monitor/config"
	"github.com/ethpandaops/horizon-monitor/types"
)

// Config is the globally accessible configuration
var Config *types.Config

// ReadConfig will process a configuration.
// Defaults are loaded from the embedded default config, the optional file at path is merged on top
// and environment variables override both.
func ReadConfig(cfg *types.Config, path string) error {
	err := yaml.Unmarshal([]byte(config.DefaultConfigYml), cfg)
	if err != nil {
		return fmt.Errorf("error decoding default config: %w", err)
	}

	if path != "" {
		fileCfg := &types.Config{}
		err = readConfigFile(fileCfg, path)
		if err != nil {
			return err
		}

		err = mergo.Merge(cfg, fileCfg, mergo.WithOverride)
		if err != nil {
			return fmt.Errorf("error merging config file %v: %w", path, err)
		}
	}

	err = readConfigEnv(cfg)
	if err != nil {
		return fmt.Errorf("error reading config from environment: %w", err)
	}

	normalizeConfig(cfg)

	err = validator.New().Struct(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.WithFields(log.Fields{
		"rpcUrl":         cfg.Network.RpcUrl != "",
		"subgraphUrl":    cfg.Network.SubgraphUrl != "",
		"qosSubgraphUrl": cfg.Network.QosSubgraphUrl != "",
		"horizonVersion": cfg.Migration.HorizonVersion,
	}).Debugf("did init config")

	return nil
}

func readConfigFile(cfg *types.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(cfg)
	if err != nil {
		return fmt.Errorf("error decoding config file %v: %v", path, err)
	}

	return nil
}

func readConfigEnv(cfg *types.Config) error {
	return envconfig.Process("", cfg)
}

func normalizeConfig(cfg *types.Config) {
	cfg.Network.GatewayPayer = CanonicalAddress(cfg.Network.GatewayPayer)
	cfg.Contracts.HorizonStaking = CanonicalAddress(cfg.Contracts.HorizonStaking)
	cfg.Contracts.SubgraphService = CanonicalAddress(cfg.Contracts.SubgraphService)
	cfg.Contracts.DisputeManager = CanonicalAddress(cfg.Contracts.DisputeManager)
	cfg.Contracts.GraphTallyCollector = CanonicalAddress(cfg.Contracts.GraphTallyCollector)
	cfg.Migration.HorizonVersion = strings.TrimPrefix(strings.TrimSpace(cfg.Migration.HorizonVersion), "v")
}

// RedactedConfig returns a copy of the config that is safe to print.
func RedactedConfig(cfg *types.Config) types.Config {
	redacted := *cfg
	if redacted.Network.StudioApiKey != "" {
		key := redacted.Network.StudioApiKey
		if len(key) > 8 {
			redacted.Network.StudioApiKey = key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
		} else {
			redacted.Network.StudioApiKey = strings.Repeat("*", len(key))
		}
	}
	if len(cfg.Network.RpcHeaders) > 0 {
		redacted.Network.RpcHeaders = make(map[string]string, len(cfg.Network.RpcHeaders))
		for name := range cfg.Network.RpcHeaders {
			redacted.Network.RpcHeaders[name] = "***"
		}
	}
	return redacted
}
