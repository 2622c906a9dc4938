package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds all kiosk configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Purchase PurchaseConfig `mapstructure:"purchase"`
	TopUp    TopUpConfig    `mapstructure:"topup"`
	Rental   RentalConfig   `mapstructure:"rental"`
	Devices  DeviceConfig   `mapstructure:"devices"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// PricingConfig holds fee and refund tunables
type PricingConfig struct {
	DepositAmount int64 `mapstructure:"deposit_amount"`
	UnitRate      int64 `mapstructure:"unit_rate"`
	MinimumFee    int64 `mapstructure:"minimum_fee"`
}

// PurchaseConfig holds card purchase tunables
type PurchaseConfig struct {
	MinAmount     int64 `mapstructure:"min_amount"`
	CardInventory int   `mapstructure:"card_inventory"`
}

// TopUpConfig holds top-up and lockout tunables
type TopUpConfig struct {
	MinAmount       int64         `mapstructure:"min_amount"`
	MaxFailures     int           `mapstructure:"max_failures"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
	// DeclineRate is the simulated bank's random decline probability. The
	// bank approves every transfer by default; raise it to demo the lockout.
	DeclineRate float64 `mapstructure:"decline_rate"`
}

// RentalConfig holds bike rental tunables
type RentalConfig struct {
	MinBalance       int64         `mapstructure:"min_balance"`
	CountdownSeconds int           `mapstructure:"countdown_seconds"`
	WarningSeconds   int           `mapstructure:"warning_seconds"`
}

// DeviceConfig holds simulated device timings and failure rates
type DeviceConfig struct {
	ScanDelay        time.Duration `mapstructure:"scan_delay"`
	RentalScanDelay  time.Duration `mapstructure:"rental_scan_delay"`
	CashDelay        time.Duration `mapstructure:"cash_delay"`
	SensorDelay      time.Duration `mapstructure:"sensor_delay"`
	UnlockDelay      time.Duration `mapstructure:"unlock_delay"`
	ProcessDelay     time.Duration `mapstructure:"process_delay"`
	RefundDelay      time.Duration `mapstructure:"refund_delay"`
	ConnectTestDelay time.Duration `mapstructure:"connect_test_delay"`
	BankDelay        time.Duration `mapstructure:"bank_delay"`
	FailureRate      float64       `mapstructure:"failure_rate"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("KIOSK")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine: defaults cover a demo kiosk.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.path", "data/kiosk.db")
	viper.SetDefault("database.max_open_conns", 1)
	viper.SetDefault("database.max_idle_conns", 1)
	viper.SetDefault("database.conn_max_lifetime", "1h")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "console")

	viper.SetDefault("pricing.deposit_amount", 50000)
	viper.SetDefault("pricing.unit_rate", 2000)
	viper.SetDefault("pricing.minimum_fee", 2000)

	viper.SetDefault("purchase.min_amount", 1000000)
	viper.SetDefault("purchase.card_inventory", 10)

	viper.SetDefault("topup.min_amount", 10000)
	viper.SetDefault("topup.max_failures", 3)
	viper.SetDefault("topup.lockout_duration", "1h")
	viper.SetDefault("topup.decline_rate", 0.0)

	viper.SetDefault("rental.min_balance", 20000)
	viper.SetDefault("rental.countdown_seconds", 60)
	viper.SetDefault("rental.warning_seconds", 10)

	viper.SetDefault("devices.scan_delay", "2s")
	viper.SetDefault("devices.rental_scan_delay", "1.5s")
	viper.SetDefault("devices.cash_delay", "1s")
	viper.SetDefault("devices.sensor_delay", "2s")
	viper.SetDefault("devices.unlock_delay", "2s")
	viper.SetDefault("devices.process_delay", "2s")
	viper.SetDefault("devices.refund_delay", "2.5s")
	viper.SetDefault("devices.connect_test_delay", "1s")
	viper.SetDefault("devices.bank_delay", "2s")
	viper.SetDefault("devices.failure_rate", 0.1)
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Pricing.DepositAmount < 0 {
		return fmt.Errorf("pricing.deposit_amount must not be negative")
	}
	if c.Pricing.UnitRate <= 0 {
		return fmt.Errorf("pricing.unit_rate must be positive")
	}
	if c.Pricing.MinimumFee < 0 {
		return fmt.Errorf("pricing.minimum_fee must not be negative")
	}
	if c.Purchase.MinAmount <= 0 {
		return fmt.Errorf("purchase.min_amount must be positive")
	}
	if c.TopUp.MaxFailures <= 0 {
		return fmt.Errorf("topup.max_failures must be positive")
	}
	if c.TopUp.DeclineRate < 0 || c.TopUp.DeclineRate > 1 {
		return fmt.Errorf("topup.decline_rate must be between 0 and 1")
	}
	if c.Rental.CountdownSeconds <= 0 {
		return fmt.Errorf("rental.countdown_seconds must be positive")
	}
	if c.Rental.WarningSeconds < 0 || c.Rental.WarningSeconds >= c.Rental.CountdownSeconds {
		return fmt.Errorf("rental.warning_seconds must be within the countdown window")
	}
	if c.Devices.FailureRate < 0 || c.Devices.FailureRate > 1 {
		return fmt.Errorf("devices.failure_rate must be between 0.0 and 1.0")
	}
	return nil
}
