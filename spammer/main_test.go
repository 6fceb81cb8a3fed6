package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	random "math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/tx-spammer/log"
	"github.com/dominant-strategies/tx-spammer/transfer"
	"github.com/dominant-strategies/tx-spammer/util"
)

type jsonRequest struct {
	Method string            `json:"method"`
	Id     json.RawMessage   `json:"id"`
	Params []json.RawMessage `json:"params"`
}

// node answers the JSON-RPC calls a run makes and keeps every raw
// transaction it receives.
type node struct {
	mu      sync.Mutex
	methods []string
	raw     []*types.Transaction
}

func (n *node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req jsonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods = append(n.methods, req.Method)

	var result interface{}
	switch req.Method {
	case "web3_clientVersion":
		result = "Geth/v1.14.12"
	case "eth_chainId":
		result = hexutil.EncodeBig(big.NewInt(transfer.ChainID))
	case "eth_gasPrice":
		result = hexutil.EncodeBig(big.NewInt(1e9))
	case "eth_getTransactionCount":
		result = hexutil.EncodeUint64(0)
	case "eth_estimateGas":
		result = hexutil.EncodeUint64(21000)
	case "eth_getBalance":
		result = hexutil.EncodeBig(big.NewInt(1e18))
	case "eth_sendRawTransaction":
		var data hexutil.Bytes
		if err := json.Unmarshal(req.Params[0], &data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var tx types.Transaction
		if err := tx.UnmarshalBinary(data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.raw = append(n.raw, &tx)
		result = tx.Hash().Hex()
	default:
		http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.Id, "result": result})
}

func writeInputs(t *testing.T, keys, receivers []string, settings string) options {
	t.Helper()
	dir := t.TempDir()
	opts := options{
		keysPath:      filepath.Join(dir, "private_keys.txt"),
		receiversPath: filepath.Join(dir, "receivers.txt"),
		settingsPath:  filepath.Join(dir, "settings.json"),
	}
	require.NoError(t, os.WriteFile(opts.keysPath, []byte(strings.Join(keys, "\n")+"\n"), 0o600))
	require.NoError(t, os.WriteFile(opts.receiversPath, []byte(strings.Join(receivers, "\n")+"\n"), 0o600))
	require.NoError(t, os.WriteFile(opts.settingsPath, []byte(settings), 0o600))
	return opts
}

func newKeys(t *testing.T, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = hex.EncodeToString(crypto.FromECDSA(key))
	}
	return keys
}

func TestRunEndToEnd(t *testing.T) {
	n := &node{}
	srv := httptest.NewServer(n)
	defer srv.Close()

	receivers := []string{
		"0x1902f834dfb6ec9421783e6333ed99fac9430dc2",
		"0x21fda31d5df101b456a953f3941d26448c6b382e",
	}
	opts := writeInputs(t, newKeys(t, 3), receivers, `{
		"rpc": "`+srv.URL+`",
		"flows": 1,
		"min_value": 0.0000000001,
		"max_value": 0.0000000001,
		"min_delay": 0,
		"max_delay": 0
	}`)

	var buf bytes.Buffer
	lg := log.NewWithWriter(&buf, log.LoggerConfig{})
	require.NoError(t, run(context.Background(), opts, random.New(random.NewSource(1)), lg))

	require.Len(t, n.raw, 3)
	for _, tx := range n.raw {
		assert.Equal(t, "313313", tx.ChainId().String())
		assert.Equal(t, "100000000", tx.Value().String())
		assert.Contains(t, []string{
			strings.ToLower(receivers[0]),
			strings.ToLower(receivers[1]),
		}, strings.ToLower(tx.To().Hex()))
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "| SUCCESS |"))
	assert.Contains(t, buf.String(), "imported wallets count=3")
	assert.Contains(t, buf.String(), "all transfers finished count=3 flows=1 peak=1")
}

func TestRunUnreachableNode(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	opts := writeInputs(t, newKeys(t, 2), []string{"0x1902f834dfb6ec9421783e6333ed99fac9430dc2"},
		`{"rpc": "`+url+`", "min_delay": 0, "max_delay": 0}`)

	var buf bytes.Buffer
	err := run(context.Background(), opts, random.New(random.NewSource(1)), log.NewWithWriter(&buf, log.LoggerConfig{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errConnect))
	assert.NotContains(t, buf.String(), "sleeping")
	assert.NotContains(t, buf.String(), "start sending tx")
}

func TestRunMissingDelay(t *testing.T) {
	n := &node{}
	srv := httptest.NewServer(n)
	defer srv.Close()

	opts := writeInputs(t, newKeys(t, 1), []string{"0x1902f834dfb6ec9421783e6333ed99fac9430dc2"},
		`{"rpc": "`+srv.URL+`", "max_delay": 1}`)

	var buf bytes.Buffer
	err := run(context.Background(), opts, random.New(random.NewSource(1)), log.NewWithWriter(&buf, log.LoggerConfig{}))
	var cfgErr *util.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "min_delay", cfgErr.Key)
	assert.Empty(t, n.methods)
}
