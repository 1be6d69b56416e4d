package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Resource  ResourceConfig  `yaml:"resource"`
	Source    SourceConfig    `yaml:"source"`
	Storage   StorageConfig   `yaml:"storage"`
	Detection DetectionConfig `yaml:"detection"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

type ResourceConfig struct {
	ID string `yaml:"id"`
}

type SourceConfig struct {
	Type      string           `yaml:"type"` // simulator, azure
	Azure     *AzureConfig     `yaml:"azure,omitempty"`
	Simulator *SimulatorConfig `yaml:"simulator,omitempty"`
}

type AzureConfig struct {
	SubscriptionID string `yaml:"subscription_id"`
	ResourceGroup  string `yaml:"resource_group"`
	VMName         string `yaml:"vm_name"`
	Token          string `yaml:"token"`
}

type SimulatorConfig struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryBytes   float64 `yaml:"memory_bytes"`
	NetworkInBps  float64 `yaml:"network_in_bps"`
	NetworkOutBps float64 `yaml:"network_out_bps"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type DetectionConfig struct {
	Disabled        bool          `yaml:"disabled"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	LookbackMinutes int           `yaml:"lookback_minutes"`
	Retention       time.Duration `yaml:"retention"`
	Rules           RulesConfig   `yaml:"rules"`
}

type RulesConfig struct {
	CPU     CPURuleConfig     `yaml:"cpu"`
	Memory  MemoryRuleConfig  `yaml:"memory"`
	Network NetworkRuleConfig `yaml:"network"`
}

type CPURuleConfig struct {
	ThresholdPercent float64 `yaml:"threshold_percent"`
	WindowMinutes    int     `yaml:"window_minutes"`
}

type MemoryRuleConfig struct {
	ThresholdGB   float64 `yaml:"threshold_gb"`
	WindowMinutes int     `yaml:"window_minutes"`
}

type NetworkRuleConfig struct {
	ThresholdKBps float64 `yaml:"threshold_kbps"`
	WindowMinutes int     `yaml:"window_minutes"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)
	return &cfg, nil
}

func LoadFromEnv() *Config {
	cfg := &Config{}
	setDefaults(cfg)

	// Override from environment
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if resourceID := os.Getenv("RESOURCE_ID"); resourceID != "" {
		cfg.Resource.ID = resourceID
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.Storage.SQLite.Path = path
	}
	if sub := os.Getenv("AZURE_SUBSCRIPTION_ID"); sub != "" {
		if cfg.Source.Azure == nil {
			cfg.Source.Azure = &AzureConfig{}
		}
		cfg.Source.Type = "azure"
		cfg.Source.Azure.SubscriptionID = sub
		cfg.Source.Azure.ResourceGroup = os.Getenv("AZURE_RESOURCE_GROUP")
		cfg.Source.Azure.VMName = os.Getenv("AZURE_VM_NAME")
		cfg.Source.Azure.Token = os.Getenv("AZURE_TOKEN")
	}

	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3003
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = "simulator"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "/var/lib/incidentwatch/data"
		if cfg.Server.Environment == "development" {
			cfg.Storage.SQLite.Path = "/tmp/incidentwatch/data"
		}
	}
	if cfg.Detection.PollInterval == 0 {
		cfg.Detection.PollInterval = time.Minute
	}
	if cfg.Detection.LookbackMinutes == 0 {
		cfg.Detection.LookbackMinutes = 10
	}
	if cfg.Detection.Retention == 0 {
		cfg.Detection.Retention = 30 * 24 * time.Hour // 30 days
	}
	if cfg.Detection.Rules.CPU.ThresholdPercent == 0 {
		cfg.Detection.Rules.CPU.ThresholdPercent = 80.0
	}
	if cfg.Detection.Rules.CPU.WindowMinutes == 0 {
		cfg.Detection.Rules.CPU.WindowMinutes = 5
	}
	if cfg.Detection.Rules.Memory.ThresholdGB == 0 {
		cfg.Detection.Rules.Memory.ThresholdGB = 2.0
	}
	if cfg.Detection.Rules.Memory.WindowMinutes == 0 {
		cfg.Detection.Rules.Memory.WindowMinutes = 5
	}
	if cfg.Detection.Rules.Network.ThresholdKBps == 0 {
		cfg.Detection.Rules.Network.ThresholdKBps = 100.0
	}
	if cfg.Detection.Rules.Network.WindowMinutes == 0 {
		cfg.Detection.Rules.Network.WindowMinutes = 5
	}
}
