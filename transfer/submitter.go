package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/time/rate"

	"github.com/dominant-strategies/tx-spammer/log"
	"github.com/dominant-strategies/tx-spammer/util"
)

var errCostOverflow = errors.New("transaction cost overflows 256 bits")

// Chain is the part of the node API a submission needs. *ethclient.Client
// satisfies it.
type Chain interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Submitter validates, signs and broadcasts single transfers.
type Submitter struct {
	chain   Chain
	signer  types.Signer
	timeout time.Duration
	pace    *rate.Limiter
	log     *log.Logger
}

func NewSubmitter(chain Chain, cfg util.RunConfig, lg *log.Logger) *Submitter {
	s := &Submitter{
		chain:   chain,
		signer:  types.NewEIP155Signer(big.NewInt(ChainID)),
		timeout: cfg.RPCTimeout,
		log:     lg,
	}
	if cfg.MaxTPS > 0 {
		s.pace = rate.NewLimiter(rate.Limit(cfg.MaxTPS), 1)
	}
	return s
}

// Submit sends the transfer described by in. Failures are logged and
// reported in the returned Outcome; they never stop other transfers.
func (s *Submitter) Submit(ctx context.Context, in Intent) Outcome {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(in.Key, "0x"))
	if err != nil {
		return s.fail(Outcome{}, fmt.Errorf("failed to open wallet: %w", err))
	}
	from := crypto.PubkeyToAddress(privKey.PublicKey)
	out := Outcome{From: from}

	s.log.Info("start sending tx", "value", in.Value.StringFixed(ValuePrecision)+" ETH", "to", in.Recipient, "from", from.Hex())

	gasPrice, err := s.gasPrice(ctx)
	if err != nil {
		return s.fail(out, fmt.Errorf("failed to get gas price: %w", err))
	}
	if !common.IsHexAddress(in.Recipient) {
		return s.fail(out, fmt.Errorf("invalid recipient address %q", in.Recipient))
	}
	to := common.HexToAddress(in.Recipient)
	value := ToWei(in.Value)

	nonce, err := s.nonce(ctx, from)
	if err != nil {
		return s.fail(out, fmt.Errorf("failed to get nonce: %w", err))
	}

	gas, err := s.estimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     []byte{},
	})
	if err != nil {
		s.log.Error("while gas check", "error", err, "from", from.Hex())
		out.Kind = GasEstimationFailed
		out.Err = err
		return out
	}

	balance, err := s.balance(ctx, from)
	if err != nil {
		return s.fail(out, fmt.Errorf("failed to get balance: %w", err))
	}

	cost, err := totalCost(gas, gasPrice, value)
	if err != nil {
		return s.fail(out, err)
	}
	if balance.Cmp(cost) < 0 {
		s.log.Error("insufficient balance", "need", FromWei(cost)+" ETH", "from", from.Hex(), "balance", FromWei(balance)+" ETH")
		out.Kind = InsufficientBalance
		out.Required = cost
		out.Available = balance
		out.Err = fmt.Errorf("insufficient balance: need %s wei, have %s wei", cost, balance)
		return out
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     []byte{},
	}), s.signer, privKey)
	if err != nil {
		return s.fail(out, fmt.Errorf("can't sign tx: %w", err))
	}

	if s.pace != nil {
		if err := s.pace.Wait(ctx); err != nil {
			return s.fail(out, err)
		}
	}
	if err := s.send(ctx, tx); err != nil {
		return s.fail(out, fmt.Errorf("failed to send: %w", err))
	}

	out.Kind = Success
	out.Hash = tx.Hash()
	s.log.Success("sent tx", "hash", tx.Hash().Hex(), "from", from.Hex())
	return out
}

func (s *Submitter) fail(out Outcome, err error) Outcome {
	out.Kind = SubmissionError
	out.Err = err
	if out.From == (common.Address{}) {
		s.log.Error("transfer failed", "kind", out.Kind, "error", err)
	} else {
		s.log.Error("transfer failed", "kind", out.Kind, "error", err, "from", out.From.Hex())
	}
	return out
}

// totalCost returns gas*gasPrice + value.
func totalCost(gas uint64, gasPrice, value *big.Int) (*big.Int, error) {
	price, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return nil, errCostOverflow
	}
	amount, overflow := uint256.FromBig(value)
	if overflow {
		return nil, errCostOverflow
	}
	cost, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(gas), price)
	if overflow {
		return nil, errCostOverflow
	}
	if _, overflow = cost.AddOverflow(cost, amount); overflow {
		return nil, errCostOverflow
	}
	return cost.ToBig(), nil
}

func (s *Submitter) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Submitter) gasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.chain.SuggestGasPrice(ctx)
}

func (s *Submitter) nonce(ctx context.Context, from common.Address) (uint64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.chain.PendingNonceAt(ctx, from)
}

func (s *Submitter) estimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.chain.EstimateGas(ctx, msg)
}

func (s *Submitter) balance(ctx context.Context, from common.Address) (*big.Int, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.chain.BalanceAt(ctx, from, nil)
}

func (s *Submitter) send(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.chain.SendTransaction(ctx, tx)
}
