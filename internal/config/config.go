package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the verifier API server
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	P2P          P2PConfig          `toml:"p2p"`
	Verification VerificationConfig `toml:"verification"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  int    `toml:"read_timeout"`
	WriteTimeout int    `toml:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"ssl_mode"`
}

// P2PConfig holds libp2p relay configuration
type P2PConfig struct {
	ListenAddresses []string `toml:"listen_addresses"`
	BootstrapPeers  []string `toml:"bootstrap_peers"`
	EnableQUIC      bool     `toml:"enable_quic"`
	EnableTCP       bool     `toml:"enable_tcp"`
}

// VerificationConfig holds verification and fraud-detection settings
type VerificationConfig struct {
	FraudWindowSecs    int  `toml:"fraud_window_secs"`
	FraudScanThreshold int  `toml:"fraud_scan_threshold"`
	FraudBurstPerSec   int  `toml:"fraud_burst_per_sec"`
	EnforceChecksum    bool `toml:"enforce_checksum"`
	FetchTimeoutSecs   int  `toml:"fetch_timeout_secs"`
}

// Load loads configuration from TOML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// DatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// SetDefaults sets default values for config
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "postgres"
	}
	if c.Database.Database == "" {
		c.Database.Database = "greenledger"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.P2P.EnableTCP == false && c.P2P.EnableQUIC == false {
		c.P2P.EnableTCP = true
		c.P2P.EnableQUIC = true
	}
	if c.Verification.FraudWindowSecs == 0 {
		c.Verification.FraudWindowSecs = 300
	}
	if c.Verification.FraudScanThreshold == 0 {
		c.Verification.FraudScanThreshold = 10
	}
	if c.Verification.FraudBurstPerSec == 0 {
		c.Verification.FraudBurstPerSec = 3
	}
	if c.Verification.FetchTimeoutSecs == 0 {
		c.Verification.FetchTimeoutSecs = 10
	}
}
