package util

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/dominant-strategies/tx-spammer/log"
)

const (
	DefaultRPC   = "https://testnet.saharalabs.ai"
	DefaultFlows = 10
)

// DefaultValue is used for min_value and max_value when they are not set.
var DefaultValue = decimal.New(1, -11)

// ConfigurationError reports a settings problem that prevents a run from
// starting.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "invalid configuration"
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RunConfig holds the settings of a single run. It is not modified after
// LoadSettings returns it.
type RunConfig struct {
	RPC   string
	Proxy string
	// Flows caps the number of transfers in their active phase at once.
	Flows    int
	MinValue decimal.Decimal
	MaxValue decimal.Decimal
	MinDelay int
	MaxDelay int
	// RPCTimeout bounds each RPC call. Zero means no deadline.
	RPCTimeout time.Duration
	// MaxTPS paces broadcasts across all transfers. Zero means unlimited.
	MaxTPS float64
}

type settings struct {
	RPC        string  `mapstructure:"rpc"`
	Proxy      string  `mapstructure:"proxy"`
	Flows      int     `mapstructure:"flows"`
	MinValue   float64 `mapstructure:"min_value"`
	MaxValue   float64 `mapstructure:"max_value"`
	MinDelay   int     `mapstructure:"min_delay"`
	MaxDelay   int     `mapstructure:"max_delay"`
	RPCTimeout float64 `mapstructure:"rpc_timeout"`
	MaxTPS     float64 `mapstructure:"max_tps"`
}

// Inputs is everything a run needs from disk.
type Inputs struct {
	Keys       []string
	Recipients []string
	Config     RunConfig
}

// LoadSettings reads the JSON settings file at path.
func LoadSettings(path string) (RunConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("rpc", DefaultRPC)
	v.SetDefault("proxy", "")
	v.SetDefault("flows", DefaultFlows)
	v.SetDefault("min_value", DefaultValue.InexactFloat64())
	v.SetDefault("max_value", DefaultValue.InexactFloat64())
	v.SetDefault("rpc_timeout", 0)
	v.SetDefault("max_tps", 0)

	if err := v.ReadInConfig(); err != nil {
		return RunConfig{}, &ConfigurationError{Reason: "cannot read settings " + path, Err: err}
	}
	for _, key := range []string{"min_delay", "max_delay"} {
		if !v.IsSet(key) {
			return RunConfig{}, &ConfigurationError{Key: key, Reason: "required setting is missing"}
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return RunConfig{}, &ConfigurationError{Reason: "cannot decode settings " + path, Err: err}
	}

	cfg := RunConfig{
		RPC:        s.RPC,
		Proxy:      s.Proxy,
		Flows:      s.Flows,
		MinValue:   decimal.NewFromFloat(s.MinValue),
		MaxValue:   decimal.NewFromFloat(s.MaxValue),
		MinDelay:   s.MinDelay,
		MaxDelay:   s.MaxDelay,
		RPCTimeout: time.Duration(s.RPCTimeout * float64(time.Second)),
		MaxTPS:     s.MaxTPS,
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate checks the range invariants of the configuration.
func (c RunConfig) Validate() error {
	switch {
	case c.RPC == "":
		return &ConfigurationError{Key: "rpc", Reason: "must not be empty"}
	case c.Flows <= 0:
		return &ConfigurationError{Key: "flows", Reason: fmt.Sprintf("must be positive, got %d", c.Flows)}
	case c.MinValue.IsNegative() || c.MaxValue.IsNegative():
		return &ConfigurationError{Key: "min_value/max_value", Reason: "must not be negative"}
	case c.MinValue.GreaterThan(c.MaxValue):
		return &ConfigurationError{Key: "min_value/max_value", Reason: fmt.Sprintf("min %s exceeds max %s", c.MinValue, c.MaxValue)}
	case c.MinDelay < 0 || c.MaxDelay < 0:
		return &ConfigurationError{Key: "min_delay/max_delay", Reason: "must not be negative"}
	case c.MinDelay > c.MaxDelay:
		return &ConfigurationError{Key: "min_delay/max_delay", Reason: fmt.Sprintf("min %d exceeds max %d", c.MinDelay, c.MaxDelay)}
	case c.RPCTimeout < 0:
		return &ConfigurationError{Key: "rpc_timeout", Reason: "must not be negative"}
	case c.MaxTPS < 0:
		return &ConfigurationError{Key: "max_tps", Reason: "must not be negative"}
	}
	return nil
}

// ReadLines returns every line of the file with surrounding whitespace
// removed. Blank lines are kept.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	rd := bufio.NewReader(f)
	for {
		line, err := rd.ReadString('\n')
		if err == io.EOF {
			if line != "" {
				lines = append(lines, strings.TrimSpace(line))
			}
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines, nil
}

// Load reads the secret keys, the recipients and the settings. The keys are
// shuffled in place with rng so wallets send in random order.
func Load(keysPath, recipientsPath, settingsPath string, rng *rand.Rand, lg *log.Logger) (Inputs, error) {
	keys, err := ReadLines(keysPath)
	if err != nil {
		return Inputs{}, fmt.Errorf("read secret keys: %w", err)
	}
	lg.Info("imported wallets", "count", len(keys))

	recipients, err := ReadLines(recipientsPath)
	if err != nil {
		return Inputs{}, fmt.Errorf("read recipients: %w", err)
	}
	lg.Info("imported recipient addresses", "count", len(recipients))

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	cfg, err := LoadSettings(settingsPath)
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{Keys: keys, Recipients: recipients, Config: cfg}, nil
}
