package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Git      GitConfig      `mapstructure:"git"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite, mysql
	Path         string `mapstructure:"path"`   // sqlite file
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type QueueConfig struct {
	Mode          string `mapstructure:"mode"` // inline, redis
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
	Buffer        int    `mapstructure:"buffer"`     // inline backlog
	MaxLength     int64  `mapstructure:"max_length"` // redis list cap, 0 unbounded
}

// GitConfig clone transport settings. Credentials are never read from the URL.
type GitConfig struct {
	Username            string `mapstructure:"username"`
	Token               string `mapstructure:"token"`
	WorkspaceRoot       string `mapstructure:"workspace_root"`
	CloneTimeoutSeconds int    `mapstructure:"clone_timeout_seconds"`
	MaxRetries          int    `mapstructure:"max_retries"`
}

type ScanConfig struct {
	MaxFileBytes       int64        `mapstructure:"max_file_bytes"`
	UserCodePrefixes   []string     `mapstructure:"user_code_prefixes"`
	IncludeNonUserCode bool         `mapstructure:"include_non_user_code"`
	TextExtensions     []string     `mapstructure:"text_extensions"`
	Rules              []RiskRule   `mapstructure:"rules"`
	IgnorePatterns     []string     `mapstructure:"ignore_patterns"`
	Secrets            SecretConfig `mapstructure:"secrets"`
}

// RiskRule one row of the PII/PCI pattern table.
type RiskRule struct {
	ID       string `mapstructure:"id"`
	Keyword  string `mapstructure:"keyword"`
	Regex    string `mapstructure:"regex"`
	Type     string `mapstructure:"type"`
	Severity string `mapstructure:"severity"`
}

type SecretConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type StorageConfig struct {
	ReportDir string    `mapstructure:"report_dir"`
	OSS       OSSConfig `mapstructure:"oss"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

// AuthConfig bcrypt hashes of accepted API keys. Empty disables the gate.
type AuthConfig struct {
	APIKeyHashes []string `mapstructure:"api_key_hashes"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type CleanupConfig struct {
	WorkspaceExpireHours int `mapstructure:"workspace_expire_hours"`
	ReportExpireDays     int `mapstructure:"report_expire_days"`
	StaleJobMinutes      int `mapstructure:"stale_job_minutes"`
}

func Load(configPath string) (*Config, error) {
	// config.local.yaml holds real credentials and is not committed
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "repo_scan.db")
	v.SetDefault("queue.mode", "inline")
	v.SetDefault("queue.analysis_queue", "repo_scan:analysis_jobs")
	v.SetDefault("queue.max_workers", 2)
	v.SetDefault("queue.buffer", 32)
	v.SetDefault("queue.max_length", 1000)
	v.SetDefault("git.clone_timeout_seconds", 300)
	v.SetDefault("git.max_retries", 2)
	v.SetDefault("scan.max_file_bytes", 2<<20)
	v.SetDefault("storage.report_dir", filepath.Join(os.TempDir(), "repo_scan_reports"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cleanup.workspace_expire_hours", 6)
	v.SetDefault("cleanup.report_expire_days", 30)
	v.SetDefault("cleanup.stale_job_minutes", 60)
}
