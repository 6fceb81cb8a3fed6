package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Node is the RPC connection shared by every transfer of a run.
type Node struct {
	*ethclient.Client
	rpcClient *rpc.Client
}

// NewHTTPClient returns a pooled HTTP client. When proxy is set all requests,
// http and https alike, are sent through it.
func NewHTTPClient(proxy string) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        300,
		MaxIdleConnsPerHost: 300,
		IdleConnTimeout:     30 * time.Second,
		MaxConnsPerHost:     300,
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, &ConfigurationError{Key: "proxy", Reason: "invalid url", Err: err}
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, &ConfigurationError{Key: "proxy", Reason: fmt.Sprintf("invalid url %q", proxy)}
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport}, nil
}

// Dial connects to the JSON-RPC endpoint, optionally through proxy. HTTP
// endpoints do not open a connection until the first call; use Probe to check
// the endpoint is alive.
func Dial(ctx context.Context, rpcURL, proxy string) (*Node, error) {
	httpClient, err := NewHTTPClient(proxy)
	if err != nil {
		return nil, err
	}
	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client: %w", err)
	}
	return &Node{
		Client:    ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
	}, nil
}

// Probe checks the endpoint answers JSON-RPC requests and returns the chain id
// it reports.
func (n *Node) Probe(ctx context.Context) (int64, error) {
	var version string
	if err := n.rpcClient.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		return 0, fmt.Errorf("web3_clientVersion: %w", err)
	}
	var chainID hexutil.Big
	if err := n.rpcClient.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return chainID.ToInt().Int64(), nil
}
