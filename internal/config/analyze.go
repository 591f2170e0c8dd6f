package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ProfileConfig holds configuration for liquidity profile reconstruction.
type ProfileConfig struct {
	RPCURL        string
	Pool          string
	Block         uint64
	WordsEachSide int
	NetTolerance  string
	Out           string
	LogLevel      string
}

// LoadProfile merges config file, environment variables, and flags into ProfileConfig.
func LoadProfile(cfgFile string, flags *pflag.FlagSet) (ProfileConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"words-each-side": 10,
		"out":             "./data/profile.csv",
		"log-level":       "info",
	})
	if err != nil {
		return ProfileConfig{}, err
	}

	return ProfileConfig{
		RPCURL:        v.GetString("rpc"),
		Pool:          v.GetString("pool"),
		Block:         v.GetUint64("block"),
		WordsEachSide: v.GetInt("words-each-side"),
		NetTolerance:  v.GetString("net-tolerance"),
		Out:           v.GetString("out"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// BarsConfig holds configuration for VWAP bar building.
type BarsConfig struct {
	RPCURL   string
	In       string
	Pool     string
	Bucket   time.Duration
	Out      string
	PGDSN    string
	LogLevel string
}

// LoadBars merges config file, environment variables, and flags into BarsConfig.
func LoadBars(cfgFile string, flags *pflag.FlagSet) (BarsConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"bucket":    time.Minute,
		"out":       "./data/bars.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return BarsConfig{}, err
	}

	return BarsConfig{
		RPCURL:   v.GetString("rpc"),
		In:       v.GetString("in"),
		Pool:     v.GetString("pool"),
		Bucket:   v.GetDuration("bucket"),
		Out:      v.GetString("out"),
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// MEVConfig holds configuration for MEV pattern detection.
type MEVConfig struct {
	In              string
	MinMoveBps      string
	ReversionTolBps string
	ArbWindowBlocks uint64
	ArbWindow       time.Duration
	LiqSpan         uint64
	PenaltyBps      string
	Out             string
	CSV             string
	PGDSN           string
	LogLevel        string
}

// LoadMEV merges config file, environment variables, and flags into MEVConfig.
func LoadMEV(cfgFile string, flags *pflag.FlagSet) (MEVConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"mev-min-bp":        "10",
		"reversion-tol-bps": "10",
		"arb-window-blocks": uint64(1),
		"arb-window":        time.Minute,
		"out":               "./data/mev.jsonl",
		"log-level":         "info",
	})
	if err != nil {
		return MEVConfig{}, err
	}

	return MEVConfig{
		In:              v.GetString("in"),
		MinMoveBps:      v.GetString("mev-min-bp"),
		ReversionTolBps: v.GetString("reversion-tol-bps"),
		ArbWindowBlocks: v.GetUint64("arb-window-blocks"),
		ArbWindow:       v.GetDuration("arb-window"),
		LiqSpan:         v.GetUint64("liq-span"),
		PenaltyBps:      v.GetString("penalty-bps"),
		Out:             v.GetString("out"),
		CSV:             v.GetString("csv"),
		PGDSN:           v.GetString("pg-dsn"),
		LogLevel:        v.GetString("log-level"),
	}, nil
}

// SpreadConfig holds configuration for spread scoring.
type SpreadConfig struct {
	InA            string
	InB            string
	Pair           string
	FeeBpsEach     string
	BridgeBps      string
	ThresholdBps   string
	AlignTolerance time.Duration
	Out            string
	CSV            string
	PGDSN          string
	LogLevel       string
}

// LoadSpread merges config file, environment variables, and flags into SpreadConfig.
func LoadSpread(cfgFile string, flags *pflag.FlagSet) (SpreadConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"fee-bps-each":    "5",
		"bridge-bps":      "10",
		"thr-bps":         "30",
		"align-tolerance": 30 * time.Second,
		"out":             "./data/spreads.jsonl",
		"log-level":       "info",
	})
	if err != nil {
		return SpreadConfig{}, err
	}

	return SpreadConfig{
		InA:            v.GetString("in-a"),
		InB:            v.GetString("in-b"),
		Pair:           v.GetString("pair"),
		FeeBpsEach:     v.GetString("fee-bps-each"),
		BridgeBps:      v.GetString("bridge-bps"),
		ThresholdBps:   v.GetString("thr-bps"),
		AlignTolerance: v.GetDuration("align-tolerance"),
		Out:            v.GetString("out"),
		CSV:            v.GetString("csv"),
		PGDSN:          v.GetString("pg-dsn"),
		LogLevel:       v.GetString("log-level"),
	}, nil
}

// ReportConfig holds configuration for the summary report.
type ReportConfig struct {
	Events      string
	MEV         string
	Spreads     string
	WindowLabel string
	PGDSN       string
	LogLevel    string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window-label": "all",
		"log-level":    "info",
	})
	if err != nil {
		return ReportConfig{}, err
	}

	return ReportConfig{
		Events:      v.GetString("events"),
		MEV:         v.GetString("mev"),
		Spreads:     v.GetString("spreads"),
		WindowLabel: v.GetString("window-label"),
		PGDSN:       v.GetString("pg-dsn"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DEXLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
