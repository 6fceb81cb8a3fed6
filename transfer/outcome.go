package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies how a submission ended.
type Kind int

const (
	Success Kind = iota
	GasEstimationFailed
	InsufficientBalance
	// SubmissionError covers every other failure: a bad key or recipient, a
	// failed RPC call, signing or broadcast.
	SubmissionError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case GasEstimationFailed:
		return "gas estimation failed"
	case InsufficientBalance:
		return "insufficient balance"
	case SubmissionError:
		return "submission error"
	default:
		return "unknown"
	}
}

// Outcome is the result of one submission.
type Outcome struct {
	Kind Kind
	From common.Address
	// Hash is set on success.
	Hash common.Hash
	// Required and Available are in wei and set when the balance was too low.
	Required  *big.Int
	Available *big.Int
	Err       error
}
