package config

import "time"

// Config holds bankads configuration.
// Stored at: ./bankads.yaml or ~/.bankads/bankads.yaml
type Config struct {
	Period      PeriodCfg       `mapstructure:"period" yaml:"period"`
	OutputDir   string          `mapstructure:"output_dir" yaml:"output_dir"`
	Search      SearchCfg       `mapstructure:"search" yaml:"search"`
	OCR         OCRCfg          `mapstructure:"ocr" yaml:"ocr"`
	Tableau     TableauCfg      `mapstructure:"tableau" yaml:"tableau"`
	Slack       SlackCfg        `mapstructure:"slack" yaml:"slack"`
	Pipeline    PipelineCfg     `mapstructure:"pipeline" yaml:"pipeline"`
	Cache       CacheCfg        `mapstructure:"cache" yaml:"cache"`
	Warehouse   WarehouseCfg    `mapstructure:"warehouse" yaml:"warehouse"`
	Metrics     MetricsCfg      `mapstructure:"metrics" yaml:"metrics"`
	Banks       []BankCfg       `mapstructure:"banks" yaml:"banks" validate:"min=1,dive"`
	Advertisers []AdvertiserCfg `mapstructure:"advertisers" yaml:"advertisers" validate:"min=1,dive"`
	Categories  []string        `mapstructure:"categories" yaml:"categories" validate:"min=1,dive,required"`
}

// PeriodCfg is the reporting window, both ends as YYYYMMDD.
type PeriodCfg struct {
	Start string `mapstructure:"start" yaml:"start" validate:"required,len=8,numeric"`
	End   string `mapstructure:"end" yaml:"end" validate:"required,len=8,numeric"`
}

// SearchCfg configures the ad-transparency search API.
type SearchCfg struct {
	APIKey   string        `mapstructure:"api_key" yaml:"api_key" validate:"required"` // supports ${ENV_VAR}
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Engine   string        `mapstructure:"engine" yaml:"engine" validate:"required"`
	Region   string        `mapstructure:"region" yaml:"region" validate:"required"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size" validate:"min=1"`
	MaxPages int           `mapstructure:"max_pages" yaml:"max_pages" validate:"min=1"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OCRCfg configures the vision model used for extraction and classification.
type OCRCfg struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key" validate:"required"` // supports ${ENV_VAR}
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model" validate:"required"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"min=1"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Pacing      time.Duration `mapstructure:"pacing" yaml:"pacing"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TableauCfg holds BI server connection parameters.
type TableauCfg struct {
	ServerURL      string `mapstructure:"server_url" yaml:"server_url" validate:"required,url"`
	SiteID         string `mapstructure:"site_id" yaml:"site_id" validate:"required"`
	PATName        string `mapstructure:"pat_name" yaml:"pat_name" validate:"required"`
	PATSecret      string `mapstructure:"pat_secret" yaml:"pat_secret" validate:"required"`
	ProjectName    string `mapstructure:"project_name" yaml:"project_name" validate:"required"`
	DatasourceName string `mapstructure:"datasource_name" yaml:"datasource_name" validate:"required"`
	APIVersion     string `mapstructure:"api_version" yaml:"api_version"` // empty: ask the server
}

// SlackCfg configures the chat notification. An empty webhook disables it.
type SlackCfg struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// PipelineCfg tunes the collection loop.
type PipelineCfg struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1"`
}

// CacheCfg configures the optional Redis cache of classification results.
type CacheCfg struct {
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	Password  string        `mapstructure:"password" yaml:"password"`
	DB        int           `mapstructure:"db" yaml:"db"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// WarehouseCfg configures the optional Postgres sink.
type WarehouseCfg struct {
	DSN   string `mapstructure:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// MetricsCfg configures the optional Pushgateway export.
type MetricsCfg struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `mapstructure:"job" yaml:"job"`
}

// BankCfg maps a bank key (used for image folders) to its display label.
type BankCfg struct {
	Key   string `mapstructure:"key" yaml:"key" validate:"required"`
	Label string `mapstructure:"label" yaml:"label" validate:"required"`
}

// AdvertiserCfg maps an advertiser identifier to a bank key.
type AdvertiserCfg struct {
	ID   string `mapstructure:"id" yaml:"id" validate:"required"`
	Bank string `mapstructure:"bank" yaml:"bank" validate:"required"`
}

// DefaultCategories is the product taxonomy. "Other" is the catch-all.
var DefaultCategories = []string{
	"Deposits",
	"Mortgage Loan",
	"Consumer Loan",
	"Overdraft",
	"Credit Card",
	"Banking Package",
	"Business Loan",
	"Promotional Offer",
	"Mobile Banking",
	"Investing",
	"Other",
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Period: PeriodCfg{
			Start: "20251101",
			End:   "20251130",
		},
		OutputDir: "out",
		Search: SearchCfg{
			APIKey:   "${SERPAPI_KEY}",
			BaseURL:  "https://serpapi.com/search.json",
			Engine:   "google_ads_transparency_center",
			Region:   "2100",
			PageSize: 100,
			MaxPages: 50,
			Timeout:  60 * time.Second,
		},
		OCR: OCRCfg{
			APIKey:      "${OPENAI_API_KEY}",
			Model:       "gpt-5-chat-latest",
			Temperature: 0.0,
			MaxTokens:   600,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
			Pacing:      250 * time.Millisecond,
			Timeout:     120 * time.Second,
		},
		Tableau: TableauCfg{
			ServerURL:      "${TABLEAU_SERVER_URL}",
			SiteID:         "${TABLEAU_SITE_ID}",
			PATName:        "${TABLEAU_PAT_NAME}",
			PATSecret:      "${TABLEAU_PAT_SECRET}",
			ProjectName:    "${TABLEAU_PROJECT_NAME}",
			DatasourceName: "${TABLEAU_DATASOURCE_NAME}",
		},
		Slack: SlackCfg{
			WebhookURL: "${SLACK_WEBHOOK_URL}",
		},
		Pipeline: PipelineCfg{
			Concurrency: 1,
		},
		Cache: CacheCfg{
			TTL: 720 * time.Hour,
		},
		Warehouse: WarehouseCfg{
			Table: "bank_ads",
		},
		Metrics: MetricsCfg{
			Job: "bankads",
		},
		Banks: []BankCfg{
			{Key: "DSK", Label: "DSK"},
			{Key: "UBB", Label: "UBB"},
			{Key: "POSTBANK", Label: "Postbank"},
		},
		Advertisers: []AdvertiserCfg{
			{ID: "AR02588471511060840449", Bank: "DSK"},
			{ID: "AR14517726923544592385", Bank: "UBB"},
			{ID: "AR08110226567973568513", Bank: "POSTBANK"},
			{ID: "AR00474820660481228801", Bank: "POSTBANK"},
			{ID: "AR09013917442585395201", Bank: "POSTBANK"},
		},
		Categories: append([]string(nil), DefaultCategories...),
	}
}

// BankLabel returns the display label for a bank key, or the key itself.
func (c *Config) BankLabel(key string) string {
	for _, b := range c.Banks {
		if b.Key == key {
			return b.Label
		}
	}
	return key
}
