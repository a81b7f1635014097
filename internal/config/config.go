package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Mail     MailConfig     `yaml:"mail" mapstructure:"mail"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	OCR      OCRConfig      `yaml:"ocr" mapstructure:"ocr"`
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Workbook WorkbookConfig `yaml:"workbook" mapstructure:"workbook"`
	Retrieve RetrieveConfig `yaml:"retrieve" mapstructure:"retrieve"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MailConfig configures the IMAP mailbox searched for confirmation notes.
// SourceAddress is the sender address every search filters on.
type MailConfig struct {
	Host          string `yaml:"host" mapstructure:"host"`
	Port          int    `yaml:"port" mapstructure:"port"`
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`
	Mailbox       string `yaml:"mailbox" mapstructure:"mailbox"`
	SourceAddress string `yaml:"source_address" mapstructure:"source_address"`
}

// RenderConfig configures PDF page rasterization.
type RenderConfig struct {
	PdfToPpmPath string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	DPI          int    `yaml:"dpi" mapstructure:"dpi"`
}

// OCRConfig configures page-image text recognition.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	Language      string `yaml:"language" mapstructure:"language"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// OracleConfig configures the field-extraction model.
type OracleConfig struct {
	Provider       string  `yaml:"provider" mapstructure:"provider"`
	AnthropicKey   string  `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	AnthropicModel string  `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	LocalBaseURL   string  `yaml:"local_base_url" mapstructure:"local_base_url"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
}

// WorkbookConfig maps sheet names and 1-based column positions in the
// operations workbook. Defaults match the legacy OPC/TIPS layout.
type WorkbookConfig struct {
	InputSheet            string `yaml:"input_sheet" mapstructure:"input_sheet"`
	InputKeyColumn        int    `yaml:"input_key_column" mapstructure:"input_key_column"`
	LookupSheet           string `yaml:"lookup_sheet" mapstructure:"lookup_sheet"`
	LookupKeyColumn       int    `yaml:"lookup_key_column" mapstructure:"lookup_key_column"`
	LookupFundHouseColumn int    `yaml:"lookup_fund_house_column" mapstructure:"lookup_fund_house_column"`
	LookupTermColumn      int    `yaml:"lookup_term_column" mapstructure:"lookup_term_column"`
	LookupCredentialFirst int    `yaml:"lookup_credential_first" mapstructure:"lookup_credential_first"`
	LookupCredentialCount int    `yaml:"lookup_credential_count" mapstructure:"lookup_credential_count"`
	ExportSheet           string `yaml:"export_sheet" mapstructure:"export_sheet"`
}

// RetrieveConfig configures the retrieval phase.
type RetrieveConfig struct {
	DownloadDir string `yaml:"download_dir" mapstructure:"download_dir"`
}

// ExtractConfig configures the extraction phase.
type ExtractConfig struct {
	MaxChars    int     `yaml:"max_chars" mapstructure:"max_chars"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CNPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("mail.port", 993)
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("render.pdftoppm_path", "pdftoppm")
	v.SetDefault("render.dpi", 300)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("oracle.provider", "local")
	v.SetDefault("oracle.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("oracle.local_base_url", "http://127.0.0.1:8080")
	v.SetDefault("oracle.max_tokens", 500)
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("workbook.input_sheet", "OPC")
	v.SetDefault("workbook.input_key_column", 5)
	v.SetDefault("workbook.lookup_sheet", "TIPS")
	v.SetDefault("workbook.lookup_key_column", 1)
	v.SetDefault("workbook.lookup_fund_house_column", 2)
	v.SetDefault("workbook.lookup_term_column", 17)
	v.SetDefault("workbook.lookup_credential_first", 18)
	v.SetDefault("workbook.lookup_credential_count", 3)
	v.SetDefault("workbook.export_sheet", "CN Database")
	v.SetDefault("retrieve.download_dir", "downloads")
	v.SetDefault("extract.max_chars", 4000)
	v.SetDefault("extract.concurrency", 1)
	v.SetDefault("extract.timeout_secs", 120)
	v.SetDefault("extract.rate_per_sec", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
