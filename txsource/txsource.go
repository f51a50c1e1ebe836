// Package txsource fetches the witness data of inscription reveal
// transactions from a public Esplora API or a local bitcoind node.
package txsource

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-kit/log"
)

var (
	ErrInvalidTxID = errors.New("invalid transaction id")
	ErrNoWitness   = errors.New("transaction input carries no witness")
	ErrStatus      = errors.New("unexpected response status")
	ErrUnconfirmed = errors.New("transaction is not confirmed")
)

// Source looks transactions up by id. WitnessHex returns the witness of the
// first input as hex; Block returns the block that mined the transaction
// or ErrUnconfirmed.
type Source interface {
	Name() string
	WitnessHex(ctx context.Context, txid string) (string, error)
	Transaction(ctx context.Context, txid string) (*Transaction, error)
	Block(ctx context.Context, txid string) (*Block, error)
	Close() error
}

const (
	DefaultPublicEndpoint   = "https://mempool.space/api/"
	DefaultFallbackEndpoint = "https://mempool.bullbitcoin.com/api/"
	DefaultNodeHost         = "127.0.0.1:8332"
	DefaultTimeout          = 2 * time.Second
	DefaultRetries          = 2
)

type Config struct {
	// UsePublicAPI selects the Esplora endpoints over the local node.
	UsePublicAPI     bool
	PublicEndpoint   string
	FallbackEndpoint string

	NodeHost string
	NodeUser string
	NodePass string

	Timeout time.Duration
	Retries uint64
	Logger  log.Logger

	// Params selects the network used to encode output addresses.
	Params *chaincfg.Params
}

func DefaultConfig() Config {
	return Config{
		UsePublicAPI:     true,
		PublicEndpoint:   DefaultPublicEndpoint,
		FallbackEndpoint: DefaultFallbackEndpoint,
		NodeHost:         DefaultNodeHost,
		Timeout:          DefaultTimeout,
		Retries:          DefaultRetries,
		Params:           &chaincfg.MainNetParams,
	}
}

// New builds the source selected by cfg. Public mode tries the primary
// endpoint first and the fallback endpoint second. Both modes are wrapped
// in a Fallback so every request is counted per source.
func New(cfg Config) (Source, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if !cfg.UsePublicAPI {
		node, err := NewNode(cfg)
		if err != nil {
			return nil, err
		}
		return NewFallback(cfg.Logger, node), nil
	}

	var sources []Source
	if cfg.PublicEndpoint != "" {
		sources = append(sources, NewEsplora("primary", cfg.PublicEndpoint, cfg))
	}
	if cfg.FallbackEndpoint != "" {
		sources = append(sources, NewEsplora("fallback", cfg.FallbackEndpoint, cfg))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no public api endpoint configured")
	}
	return NewFallback(cfg.Logger, sources...), nil
}

// ParseTxID validates a 64 character hex transaction id.
func ParseTxID(txid string) (*chainhash.Hash, error) {
	txid = strings.TrimSpace(txid)
	if len(txid) != chainhash.MaxHashStringSize {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTxID, txid)
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTxID, err)
	}
	return hash, nil
}

// WitnessHex joins the hex of every witness item of the first input.
func WitnessHex(tx *wire.MsgTx) (string, error) {
	if len(tx.TxIn) == 0 || len(tx.TxIn[0].Witness) == 0 {
		return "", ErrNoWitness
	}
	var b strings.Builder
	for _, item := range tx.TxIn[0].Witness {
		b.WriteString(hex.EncodeToString(item))
	}
	return b.String(), nil
}
