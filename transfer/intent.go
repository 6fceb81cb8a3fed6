package transfer

import (
	"errors"
	"math/big"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dominant-strategies/tx-spammer/util"
)

const (
	// ChainID is the network every transfer is signed for. It is never taken
	// from the node.
	ChainID int64 = 313313
	// ValuePrecision is the number of decimal places kept in a random value.
	ValuePrecision = 12
	// EtherDecimals converts between ether and wei.
	EtherDecimals = 18
)

var errNoRecipients = errors.New("no recipient addresses")

// Intent is one planned transfer. It is consumed by exactly one submission.
type Intent struct {
	Key       string
	Recipient string
	Value     decimal.Decimal
	Delay     time.Duration
}

// NewIntent draws a recipient, a value and a delay for key.
func NewIntent(rng *rand.Rand, key string, recipients []string, cfg util.RunConfig) Intent {
	return Intent{
		Key:       key,
		Recipient: recipients[rng.Intn(len(recipients))],
		Value:     randomValue(rng, cfg.MinValue, cfg.MaxValue),
		Delay:     time.Duration(randomInt(rng, cfg.MinDelay, cfg.MaxDelay)) * time.Second,
	}
}

// Plan builds one intent per key, keeping the order of keys.
func Plan(rng *rand.Rand, keys, recipients []string, cfg util.RunConfig) ([]Intent, error) {
	if len(keys) > 0 && len(recipients) == 0 {
		return nil, errNoRecipients
	}
	intents := make([]Intent, 0, len(keys))
	for _, key := range keys {
		intents = append(intents, NewIntent(rng, key, recipients, cfg))
	}
	return intents, nil
}

func randomValue(rng *rand.Rand, min, max decimal.Decimal) decimal.Decimal {
	v := min.Add(max.Sub(min).Mul(decimal.NewFromFloat(rng.Float64()))).Round(ValuePrecision)
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

// randomInt returns an integer in [min, max].
func randomInt(rng *rand.Rand, min, max int) int {
	return min + rng.Intn(max-min+1)
}

// ToWei converts an ether amount to wei, dropping anything below one wei.
func ToWei(ether decimal.Decimal) *big.Int {
	return ether.Shift(EtherDecimals).BigInt()
}

// FromWei formats a wei amount in ether without losing precision.
func FromWei(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}
