package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultProjectName is used when no Tableau project is configured.
	DefaultProjectName = "Default"

	// DefaultDatasourceName is used when no Tableau datasource name is configured.
	DefaultDatasourceName = "bank_ads_latest"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager loads configuration from defaults, a YAML file, and the environment.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager creates a new config manager and loads the config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v, DefaultConfig())

	// Environment variables with BANKADS_ prefix, e.g. BANKADS_PERIOD_START
	cm.v.SetEnvPrefix("BANKADS")
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("bankads")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.bankads")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("period.start", d.Period.Start)
	v.SetDefault("period.end", d.Period.End)
	v.SetDefault("output_dir", d.OutputDir)

	v.SetDefault("search.api_key", d.Search.APIKey)
	v.SetDefault("search.base_url", d.Search.BaseURL)
	v.SetDefault("search.engine", d.Search.Engine)
	v.SetDefault("search.region", d.Search.Region)
	v.SetDefault("search.page_size", d.Search.PageSize)
	v.SetDefault("search.max_pages", d.Search.MaxPages)
	v.SetDefault("search.timeout", d.Search.Timeout)

	v.SetDefault("ocr.api_key", d.OCR.APIKey)
	v.SetDefault("ocr.base_url", d.OCR.BaseURL)
	v.SetDefault("ocr.model", d.OCR.Model)
	v.SetDefault("ocr.temperature", d.OCR.Temperature)
	v.SetDefault("ocr.max_tokens", d.OCR.MaxTokens)
	v.SetDefault("ocr.max_attempts", d.OCR.MaxAttempts)
	v.SetDefault("ocr.retry_delay", d.OCR.RetryDelay)
	v.SetDefault("ocr.pacing", d.OCR.Pacing)
	v.SetDefault("ocr.timeout", d.OCR.Timeout)

	v.SetDefault("tableau.server_url", d.Tableau.ServerURL)
	v.SetDefault("tableau.site_id", d.Tableau.SiteID)
	v.SetDefault("tableau.pat_name", d.Tableau.PATName)
	v.SetDefault("tableau.pat_secret", d.Tableau.PATSecret)
	v.SetDefault("tableau.project_name", d.Tableau.ProjectName)
	v.SetDefault("tableau.datasource_name", d.Tableau.DatasourceName)
	v.SetDefault("tableau.api_version", d.Tableau.APIVersion)

	v.SetDefault("slack.webhook_url", d.Slack.WebhookURL)
	v.SetDefault("pipeline.concurrency", d.Pipeline.Concurrency)

	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.password", d.Cache.Password)
	v.SetDefault("cache.db", d.Cache.DB)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("warehouse.dsn", d.Warehouse.DSN)
	v.SetDefault("warehouse.table", d.Warehouse.Table)

	v.SetDefault("metrics.pushgateway_url", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.job", d.Metrics.Job)

	v.SetDefault("banks", d.Banks)
	v.SetDefault("advertisers", d.Advertisers)
	v.SetDefault("categories", d.Categories)
}

// load parses the current viper state into a Config struct with env references resolved.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Resolve()
	return &cfg, nil
}

// Get returns the loaded configuration.
func (cm *Manager) Get() *Config {
	return cm.config
}

// ConfigFileUsed returns the path of the config file read, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Resolve expands ${ENV_VAR} references and fills fallbacks for optional names.
func (c *Config) Resolve() {
	c.Search.APIKey = ResolveEnvVars(c.Search.APIKey)
	c.OCR.APIKey = ResolveEnvVars(c.OCR.APIKey)
	c.OCR.BaseURL = ResolveEnvVars(c.OCR.BaseURL)

	c.Tableau.ServerURL = ResolveEnvVars(c.Tableau.ServerURL)
	c.Tableau.SiteID = ResolveEnvVars(c.Tableau.SiteID)
	c.Tableau.PATName = ResolveEnvVars(c.Tableau.PATName)
	c.Tableau.PATSecret = ResolveEnvVars(c.Tableau.PATSecret)
	c.Tableau.ProjectName = ResolveEnvVars(c.Tableau.ProjectName)
	c.Tableau.DatasourceName = ResolveEnvVars(c.Tableau.DatasourceName)
	if c.Tableau.ProjectName == "" {
		c.Tableau.ProjectName = DefaultProjectName
	}
	if c.Tableau.DatasourceName == "" {
		c.Tableau.DatasourceName = DefaultDatasourceName
	}

	c.Slack.WebhookURL = ResolveEnvVars(c.Slack.WebhookURL)
	c.Cache.RedisAddr = ResolveEnvVars(c.Cache.RedisAddr)
	c.Cache.Password = ResolveEnvVars(c.Cache.Password)
	c.Warehouse.DSN = ResolveEnvVars(c.Warehouse.DSN)
	c.Metrics.PushgatewayURL = ResolveEnvVars(c.Metrics.PushgatewayURL)
}

// ReportDate returns the period end date as YYYY-MM-DD. Every row of a run carries it.
func (c *Config) ReportDate() (string, error) {
	return ISODate(c.Period.End)
}

// ISODate converts a YYYYMMDD date to YYYY-MM-DD.
func ISODate(value string) (string, error) {
	if len(value) != 8 || strings.Trim(value, "0123456789") != "" {
		return "", fmt.Errorf("%w: date %q must be YYYYMMDD", ErrInvalidConfig, value)
	}
	return value[:4] + "-" + value[4:6] + "-" + value[6:], nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# bankads configuration
# Secrets use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export SERPAPI_KEY=xxx OPENAI_API_KEY=xxx TABLEAU_PAT_SECRET=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
