package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dexArb/internal/gas"
)

// Mainnet venue factories and wrapped ether.
const (
	DefaultFactoryV2 = "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"
	DefaultFactoryV3 = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	DefaultBaseAsset = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	RPCTimeout time.Duration
	ChainID    int64

	FactoryV2  string
	FactoryV3  string
	BaseAsset  string
	Settlement string
	Assets     []string
	FeeTiers   []uint32

	FundingKey         string
	FundingAmount      decimal.Decimal
	GasTier            gas.Tier
	GasLimitMultiplier decimal.Decimal
	SettleDelay        time.Duration
	Deadline           time.Duration
	DryRun             bool

	Journal       string
	JournalRotate bool
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration
	MetricsAddr   string

	BackfillBlocks uint64
	BatchSize      uint64
	MaxRetries     int
	RetryBackoff   time.Duration
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc-timeout", 15*time.Second)
	v.SetDefault("chain-id", int64(1))
	v.SetDefault("factory-v2", DefaultFactoryV2)
	v.SetDefault("factory-v3", DefaultFactoryV3)
	v.SetDefault("base-asset", DefaultBaseAsset)
	v.SetDefault("fee-tiers", "500,3000")
	v.SetDefault("funding-amount", "1")
	v.SetDefault("gas-tier", string(gas.TierFast))
	v.SetDefault("gas-limit-multiplier", "1.2")
	v.SetDefault("settle-delay", 500*time.Millisecond)
	v.SetDefault("deadline", 60*time.Second)
	v.SetDefault("journal", "./data/decisions.jsonl")
	v.SetDefault("journal-rotate", false)
	v.SetDefault("lock-ttl", 2*time.Minute)
	v.SetDefault("metrics-addr", ":9108")
	v.SetDefault("backfill-blocks", uint64(1000))
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	funding, err := decimal.NewFromString(v.GetString("funding-amount"))
	if err != nil {
		return Config{}, fmt.Errorf("funding-amount: %w", err)
	}
	multiplier, err := decimal.NewFromString(v.GetString("gas-limit-multiplier"))
	if err != nil {
		return Config{}, fmt.Errorf("gas-limit-multiplier: %w", err)
	}
	tier, err := gas.ParseTier(v.GetString("gas-tier"))
	if err != nil {
		return Config{}, err
	}
	feeTiers, err := ParseFeeTiers(getStringSlice(v, "fee-tiers"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		RPCTimeout:         v.GetDuration("rpc-timeout"),
		ChainID:            v.GetInt64("chain-id"),
		FactoryV2:          v.GetString("factory-v2"),
		FactoryV3:          v.GetString("factory-v3"),
		BaseAsset:          v.GetString("base-asset"),
		Settlement:         v.GetString("settlement"),
		Assets:             getStringSlice(v, "assets"),
		FeeTiers:           feeTiers,
		FundingKey:         v.GetString("funding-key"),
		FundingAmount:      funding,
		GasTier:            tier,
		GasLimitMultiplier: multiplier,
		SettleDelay:        v.GetDuration("settle-delay"),
		Deadline:           v.GetDuration("deadline"),
		DryRun:             v.GetBool("dry-run"),
		Journal:            v.GetString("journal"),
		JournalRotate:      v.GetBool("journal-rotate"),
		PostgresDSN:        v.GetString("pg-dsn"),
		RedisAddr:          v.GetString("redis-addr"),
		RedisPassword:      v.GetString("redis-password"),
		LockTTL:            v.GetDuration("lock-ttl"),
		MetricsAddr:        v.GetString("metrics-addr"),
		BackfillBlocks:     v.GetUint64("backfill-blocks"),
		BatchSize:          v.GetUint64("batch-size"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}

// ValidateResolve checks what the pool resolver needs.
func (c Config) ValidateResolve() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if len(c.Assets) == 0 {
		return errors.New("at least one asset is required")
	}
	for _, f := range []struct{ name, addr string }{
		{"factory-v2", c.FactoryV2},
		{"factory-v3", c.FactoryV3},
		{"base-asset", c.BaseAsset},
	} {
		if !common.IsHexAddress(f.addr) {
			return fmt.Errorf("%s is not a valid address: %q", f.name, f.addr)
		}
	}
	if _, err := ParseAddresses(c.Assets); err != nil {
		return err
	}
	return nil
}

// Validate checks everything the run command needs.
func (c Config) Validate() error {
	if err := c.ValidateResolve(); err != nil {
		return err
	}
	if !common.IsHexAddress(c.Settlement) {
		return fmt.Errorf("settlement is not a valid address: %q", c.Settlement)
	}
	if c.FundingKey == "" {
		return errors.New("funding key is required")
	}
	if !c.FundingAmount.IsPositive() {
		return errors.New("funding amount must be positive")
	}
	if c.GasLimitMultiplier.LessThan(decimal.NewFromInt(1)) {
		return errors.New("gas limit multiplier must be at least 1")
	}
	if c.ChainID <= 0 {
		return errors.New("chain id must be positive")
	}
	if c.BackfillBlocks > 0 && c.BatchSize == 0 {
		return errors.New("batch size must be greater than zero")
	}
	if c.Deadline <= 0 {
		return errors.New("deadline must be positive")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
