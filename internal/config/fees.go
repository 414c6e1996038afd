package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FeeTier is one inclusive vehicle-count band of the UCR fee table.
// MaxVehicles == nil marks the open-ended "contact us" band with no
// numeric fee.
type FeeTier struct {
	MinVehicles int   `mapstructure:"minVehicles"`
	MaxVehicles *int  `mapstructure:"maxVehicles"`
	AmountCents int64 `mapstructure:"amountCents"`
}

type FeeConfig struct {
	UCRTiers        []FeeTier `mapstructure:"ucrTiers"`
	MCS150FeeCents  int64     `mapstructure:"mcs150FeeCents"`
	ResumeTokenTTLH int       `mapstructure:"resumeTokenTtlHours"`
}

// DefaultFeeConfig is the statutory UCR table plus the flat MCS-150
// service fee. The billing screen's legacy $10+$5 itemization was
// dropped in favor of the single $149 charge.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		UCRTiers: []FeeTier{
			{MinVehicles: 0, MaxVehicles: intPtr(2), AmountCents: 17600},
			{MinVehicles: 3, MaxVehicles: intPtr(5), AmountCents: 38800},
			{MinVehicles: 6, MaxVehicles: intPtr(20), AmountCents: 60900},
			{MinVehicles: 21, MaxVehicles: intPtr(100), AmountCents: 144900},
			{MinVehicles: 101, MaxVehicles: intPtr(1000), AmountCents: 681600},
			{MinVehicles: 1001, MaxVehicles: nil, AmountCents: 0},
		},
		MCS150FeeCents:  14900,
		ResumeTokenTTLH: 72,
	}
}

func intPtr(v int) *int { return &v }

// FeeConfigHolder exposes the current fee schedule and swaps it
// atomically on hot reload.
type FeeConfigHolder struct {
	current atomic.Value // holds FeeConfig
}

func NewFeeConfigHolder() (*FeeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fees")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dotfilings/config")
	v.AddConfigPath("/etc/dotfilings")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOTFILINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultFeeConfig()
		v.SetDefault("fees.ucrTiers", defaults.UCRTiers)
		v.SetDefault("fees.mcs150FeeCents", defaults.MCS150FeeCents)
		v.SetDefault("fees.resumeTokenTtlHours", defaults.ResumeTokenTTLH)
	}

	var cfg FeeConfig
	if err := v.UnmarshalKey("fees", &cfg); err != nil {
		return nil, err
	}
	if err := validateFeeConfig(cfg); err != nil {
		return nil, err
	}

	holder := &FeeConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FeeConfig
		if err := v.UnmarshalKey("fees", &updated); err != nil {
			log.Printf("[fee-config] reload failed: %v", err)
			return
		}
		if err := validateFeeConfig(updated); err != nil {
			log.Printf("[fee-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fee-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticFeeConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticFeeConfigHolder(cfg FeeConfig) *FeeConfigHolder {
	holder := &FeeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *FeeConfigHolder) Get() FeeConfig {
	return h.current.Load().(FeeConfig)
}

func validateFeeConfig(cfg FeeConfig) error {
	if len(cfg.UCRTiers) == 0 {
		return errors.New("fees.ucrTiers cannot be empty")
	}
	if cfg.MCS150FeeCents <= 0 {
		return errors.New("fees.mcs150FeeCents must be positive")
	}
	prevMax := -1
	for _, tier := range cfg.UCRTiers {
		if tier.MinVehicles != prevMax+1 {
			return errors.New("fees.ucrTiers must be contiguous and ascending")
		}
		if tier.MaxVehicles == nil {
			prevMax = -2 // open-ended band must be last
			continue
		}
		if *tier.MaxVehicles < tier.MinVehicles {
			return errors.New("fees.ucrTiers band is inverted")
		}
		prevMax = *tier.MaxVehicles
	}
	return nil
}
