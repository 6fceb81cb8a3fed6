package transfer

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/tx-spammer/log"
)

var (
	GASPRICE = big.NewInt(params.GWei)
	GAS      = uint64(21000)
	NONCE    = uint64(7)
)

// fakeChain records the calls a submission makes.
type fakeChain struct {
	mu          sync.Mutex
	balance     *big.Int
	estimateErr error
	sendErr     error
	hold        time.Duration
	block       bool

	calls    []string
	sent     []*types.Transaction
	estimate []ethereum.CallMsg
	inFlight int
	peak     int
}

func newFakeChain() *fakeChain {
	return &fakeChain{balance: new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(10))}
}

func (f *fakeChain) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.record("gasPrice")
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	time.Sleep(f.hold)
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return new(big.Int).Set(GASPRICE), nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.record("nonce")
	return NONCE, nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.record("estimateGas")
	f.mu.Lock()
	f.estimate = append(f.estimate, msg)
	f.mu.Unlock()
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return GAS, nil
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.record("balance")
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.record("send")
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.mu.Unlock()
	return nil
}

func (f *fakeChain) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func newKey(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

func newLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.NewWithWriter(&buf, log.LoggerConfig{Verbosity: "debug"}), &buf
}

// DeserializeTx decodes a transaction in its network encoding.
func DeserializeTx(data []byte) (*types.Transaction, error) {
	var tx types.Transaction
	err := tx.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
