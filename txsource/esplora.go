package txsource

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// maxRawTxSize bounds the hex body read from the API.
const maxRawTxSize = 2 * 4_000_000

// Esplora reads transactions from a mempool.space compatible REST API.
type Esplora struct {
	name       string
	endpoint   string
	client     *http.Client
	retries    uint64
	params     *chaincfg.Params
	logger     log.Logger
	newBackOff func() backoff.BackOff
}

func NewEsplora(name, endpoint string, cfg Config) *Esplora {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Esplora{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		retries:  cfg.Retries,
		params:   cfg.Params,
		logger:   log.With(logger, "source", name),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

func (e *Esplora) Name() string {
	return e.name
}

func (e *Esplora) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *Esplora) WitnessHex(ctx context.Context, txid string) (string, error) {
	tx, err := e.rawTransaction(ctx, txid)
	if err != nil {
		return "", err
	}
	return WitnessHex(tx)
}

// Transaction fetches the raw transaction and its confirmation status.
func (e *Esplora) Transaction(ctx context.Context, txid string) (*Transaction, error) {
	tx, err := e.rawTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	status, err := e.status(ctx, txid)
	if err != nil {
		return nil, err
	}

	t := NewTransaction(tx, e.params)
	t.Status = *status
	return t, nil
}

// Block looks up the confirmation status of txid, then the block it names.
func (e *Esplora) Block(ctx context.Context, txid string) (*Block, error) {
	status, err := e.status(ctx, txid)
	if err != nil {
		return nil, err
	}
	if !status.Confirmed || status.BlockHash == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnconfirmed, txid)
	}

	block := &Block{}
	if err := e.getJSON(ctx, "block/"+status.BlockHash, block); err != nil {
		return nil, err
	}
	return block, nil
}

func (e *Esplora) rawTransaction(ctx context.Context, txid string) (*wire.MsgTx, error) {
	hash, err := ParseTxID(txid)
	if err != nil {
		return nil, err
	}
	body, err := e.fetch(ctx, "tx/"+hash.String()+"/hex")
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, fmt.Errorf("error decoding transaction hex: %w", err)
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("error deserializing transaction: %w", err)
	}
	return tx, nil
}

func (e *Esplora) status(ctx context.Context, txid string) (*Status, error) {
	hash, err := ParseTxID(txid)
	if err != nil {
		return nil, err
	}
	status := &Status{}
	if err := e.getJSON(ctx, "tx/"+hash.String()+"/status", status); err != nil {
		return nil, err
	}
	return status, nil
}

func (e *Esplora) getJSON(ctx context.Context, path string, v any) error {
	body, err := e.fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}

// fetch GETs path below the endpoint, retrying transient failures.
func (e *Esplora) fetch(ctx context.Context, path string) ([]byte, error) {
	url := e.endpoint + path

	var body []byte
	op := func() error {
		var err error
		body, err = e.get(ctx, url)
		if err != nil {
			level.Debug(e.logger).Log("msg", "request failed", "url", url, "err", err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), e.retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return body, nil
}

func (e *Esplora) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %s", ErrStatus, res.Status)
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(io.LimitReader(res.Body, maxRawTxSize))
}
