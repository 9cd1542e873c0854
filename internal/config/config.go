package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	AppPort string
	AppEnv  string

	JWTSecret         string
	CallbackToken     string
	InternalSecretKey string
	CORSOrigin        string

	// PaymentEvents selects how status changes reach watchers: "local" or "postgres".
	PaymentEvents string

	Simulator SimulatorSettings
}

// SimulatorSettings tunes the stand-in payment gateway.
type SimulatorSettings struct {
	WalletSuccessRate float64
	CardSuccessRate   float64
	WalletMethods     []string
	CardMethods       []string
}

// simulatorFile mirrors the YAML layout. Rates are pointers so an explicit 0 is
// told apart from an absent key.
type simulatorFile struct {
	Simulator struct {
		WalletSuccessRate *float64 `yaml:"wallet_success_rate"`
		CardSuccessRate   *float64 `yaml:"card_success_rate"`
		WalletMethods     []string `yaml:"wallet_methods"`
		CardMethods       []string `yaml:"card_methods"`
	} `yaml:"simulator"`
}

func defaultSimulatorSettings() SimulatorSettings {
	return SimulatorSettings{
		WalletSuccessRate: 0.8,
		CardSuccessRate:   0.9,
		WalletMethods:     []string{"qpay", "socialpay", "monpay", "lendmn"},
		CardMethods:       []string{"visa", "mastercard", "unionpay"},
	}
}

// Load reads .env (if present), the environment and the optional simulator file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:            os.Getenv("DB_HOST"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            os.Getenv("DB_NAME"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		AppPort:           getenv("APP_PORT", "8080"),
		AppEnv:            getenv("APP_ENV", "development"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CallbackToken:     os.Getenv("PAYMENT_CALLBACK_TOKEN"),
		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),
		CORSOrigin:        getenv("CORS_ORIGIN", "http://localhost:3000"),
		PaymentEvents:     getenv("PAYMENT_EVENTS", "local"),
		Simulator:         defaultSimulatorSettings(),
	}

	if cfg.DBHost == "" {
		return nil, errors.New("DB_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.PaymentEvents != "local" && cfg.PaymentEvents != "postgres" {
		return nil, fmt.Errorf("PAYMENT_EVENTS must be local or postgres, got %q", cfg.PaymentEvents)
	}

	if path := os.Getenv("PAYMENT_SIMULATOR_CONFIG"); path != "" {
		if err := loadSimulatorFile(path, &cfg.Simulator); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("WALLET_SUCCESS_RATE"); v != "" {
		rate, err := parseRate(v)
		if err != nil {
			return nil, fmt.Errorf("WALLET_SUCCESS_RATE: %w", err)
		}
		cfg.Simulator.WalletSuccessRate = rate
	}
	if v := os.Getenv("CARD_SUCCESS_RATE"); v != "" {
		rate, err := parseRate(v)
		if err != nil {
			return nil, fmt.Errorf("CARD_SUCCESS_RATE: %w", err)
		}
		cfg.Simulator.CardSuccessRate = rate
	}

	return cfg, nil
}

func loadSimulatorFile(path string, into *SimulatorSettings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read simulator config: %w", err)
	}

	var file simulatorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse simulator config: %w", err)
	}

	s := file.Simulator
	if s.WalletSuccessRate != nil {
		into.WalletSuccessRate = *s.WalletSuccessRate
	}
	if s.CardSuccessRate != nil {
		into.CardSuccessRate = *s.CardSuccessRate
	}
	if len(s.WalletMethods) > 0 {
		into.WalletMethods = s.WalletMethods
	}
	if len(s.CardMethods) > 0 {
		into.CardMethods = s.CardMethods
	}

	if !validRate(into.WalletSuccessRate) || !validRate(into.CardSuccessRate) {
		return errors.New("simulator success rates must be within [0, 1]")
	}
	return nil
}

func parseRate(v string) (float64, error) {
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if !validRate(rate) {
		return 0, fmt.Errorf("rate %v out of range [0, 1]", rate)
	}
	return rate, nil
}

func validRate(r float64) bool {
	return r >= 0 && r <= 1
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
