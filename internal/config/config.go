package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Uniswap v3 mainnet addresses used as replay defaults.
const (
	DefaultFactoryAddress = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
	DefaultWrappedNative  = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	DefaultReferencePool  = "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8"

	// Pool with broken pricing whose swaps are skipped by default.
	DefaultExcludedPool = "0x9663f2ca0454accad3e094448ea6f77443880454"
)

// Config holds replay configuration loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	Input            string
	PGDSN            string
	FactoryAddress   string
	ExcludedPools    []string
	MaxTickCrossings int32
	BatchSize        int
	StateFile        string
	ResumeFrom       string
	WrappedNative    string
	Stablecoins      []string
	Whitelist        []string
	ReferencePool    string
	MaxRetries       int
	RetryBackoff     time.Duration
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TICKSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("factory", DefaultFactoryAddress)
	v.SetDefault("excluded-pools", DefaultExcludedPool)
	v.SetDefault("max-tick-crossings", 100)
	v.SetDefault("batch-size", 1000)
	v.SetDefault("wrapped-native", DefaultWrappedNative)
	v.SetDefault("reference-pool", DefaultReferencePool)
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

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		Input:            v.GetString("in"),
		PGDSN:            v.GetString("pg-dsn"),
		FactoryAddress:   v.GetString("factory"),
		ExcludedPools:    getStringSlice(v, "excluded-pools"),
		MaxTickCrossings: v.GetInt32("max-tick-crossings"),
		BatchSize:        v.GetInt("batch-size"),
		StateFile:        v.GetString("state-file"),
		ResumeFrom:       v.GetString("resume-from"),
		WrappedNative:    v.GetString("wrapped-native"),
		Stablecoins:      getStringSlice(v, "stablecoins"),
		Whitelist:        getStringSlice(v, "whitelist"),
		ReferencePool:    v.GetString("reference-pool"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
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
