package txsource

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-kit/log"
)

// Node reads transactions from a bitcoind JSON-RPC interface. The node needs
// txindex enabled to serve confirmed transactions outside its wallet.
type Node struct {
	client  *rpcclient.Client
	timeout time.Duration
	params  *chaincfg.Params
	logger  log.Logger
}

func NewNode(cfg Config) (*Node, error) {
	host := cfg.NodeHost
	if host == "" {
		host = DefaultNodeHost
	}
	disableTLS := true
	switch {
	case strings.HasPrefix(host, "https://"):
		host, disableTLS = strings.TrimPrefix(host, "https://"), false
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}

	// Bitcoin Core only supports HTTP POST mode.
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         cfg.NodeUser,
		Pass:         cfg.NodePass,
		HTTPPostMode: true,
		DisableTLS:   disableTLS,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create rpc client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Node{
		client:  client,
		timeout: timeout,
		params:  cfg.Params,
		logger:  log.With(logger, "source", "node"),
	}, nil
}

func (n *Node) Name() string {
	return "node"
}

func (n *Node) Close() error {
	n.client.Shutdown()
	return nil
}

func (n *Node) WitnessHex(ctx context.Context, txid string) (string, error) {
	hash, err := ParseTxID(txid)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	future := n.client.GetRawTransactionAsync(hash)
	tx, err := await(ctx, future, func(ch chan *rpcclient.Response) (*wire.MsgTx, error) {
		tx, err := rpcclient.FutureGetRawTransactionResult(ch).Receive()
		if err != nil {
			return nil, err
		}
		return tx.MsgTx(), nil
	})
	if err != nil {
		return "", fmt.Errorf("getrawtransaction: %w", err)
	}
	return WitnessHex(tx)
}

// Transaction returns the decoded transaction with the block it was mined in.
func (n *Node) Transaction(ctx context.Context, txid string) (*Transaction, error) {
	res, err := n.verboseTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(res.Hex)
	if err != nil {
		return nil, fmt.Errorf("error decoding transaction hex: %w", err)
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("error deserializing transaction: %w", err)
	}

	t := NewTransaction(tx, n.params)
	t.Status = Status{
		Confirmed: res.BlockHash != "",
		BlockHash: res.BlockHash,
		BlockTime: res.Blocktime,
	}
	return t, nil
}

// Block resolves the block hash through getrawtransaction and then asks
// getblock for the block itself.
func (n *Node) Block(ctx context.Context, txid string) (*Block, error) {
	res, err := n.verboseTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	if res.BlockHash == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnconfirmed, txid)
	}
	blockHash, err := chainhash.NewHashFromStr(res.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("invalid block hash %q: %w", res.BlockHash, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	future := n.client.GetBlockVerboseAsync(blockHash)
	block, err := await(ctx, future.Response, func(ch chan *rpcclient.Response) (*btcjson.GetBlockVerboseResult, error) {
		future.Response = ch
		return future.Receive()
	})
	if err != nil {
		return nil, fmt.Errorf("getblock: %w", err)
	}
	return &Block{
		Hash:    block.Hash,
		Height:  block.Height,
		Time:    block.Time,
		TxCount: len(block.Tx),
		Size:    int64(block.Size),
		Weight:  int64(block.Weight),
	}, nil
}

func (n *Node) verboseTransaction(ctx context.Context, txid string) (*btcjson.TxRawResult, error) {
	hash, err := ParseTxID(txid)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	future := n.client.GetRawTransactionVerboseAsync(hash)
	res, err := await(ctx, future, func(ch chan *rpcclient.Response) (*btcjson.TxRawResult, error) {
		return rpcclient.FutureGetRawTransactionVerboseResult(ch).Receive()
	})
	if err != nil {
		return nil, fmt.Errorf("getrawtransaction: %w", err)
	}
	return res, nil
}

// ChainInfo returns the node's getblockchaininfo result. The first call also
// detects the backend version, which takes a second round trip.
func (n *Node) ChainInfo(ctx context.Context) (*btcjson.GetBlockChainInfoResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*n.timeout)
	defer cancel()

	future := n.client.GetBlockChainInfoAsync()
	info, err := await(ctx, future.Response, func(ch chan *rpcclient.Response) (*btcjson.GetBlockChainInfoResult, error) {
		future.Response = ch
		return future.Receive()
	})
	if err != nil {
		return nil, fmt.Errorf("getblockchaininfo: %w", err)
	}
	return info, nil
}

// await waits for the reply to an rpc request unless ctx ends first. The
// reply channel is buffered by rpcclient, so an abandoned request leaves
// nothing blocked behind it. Once the reply arrives it is handed to decode
// through a fresh channel.
func await[T any](ctx context.Context, reply chan *rpcclient.Response, decode func(chan *rpcclient.Response) (T, error)) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-reply:
		ch := make(chan *rpcclient.Response, 1)
		ch <- r
		return decode(ch)
	}
}
