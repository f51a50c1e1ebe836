package txsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/cenkalti/backoff/v4"
	dto "github.com/prometheus/client_model/go"
	"github.com/socheatsok78/ordextract/envelope"
	"github.com/socheatsok78/ordextract/internal"
	"github.com/socheatsok78/ordextract/metrics"
	"github.com/stretchr/testify/require"
)

func revealTx(t *testing.T) (*wire.MsgTx, string) {
	t.Helper()
	tx, err := internal.RevealTx(&envelope.Envelope{ContentType: "text/plain", Content: []byte("Hello, world!")})
	require.NoError(t, err)
	txHex, err := internal.SerializeHex(tx)
	require.NoError(t, err)
	return tx, txHex
}

func testEsplora(name, endpoint string) *Esplora {
	e := NewEsplora(name, endpoint, Config{Retries: 2})
	e.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return e
}

func TestParseTxID(t *testing.T) {
	tx, _ := revealTx(t)
	hash, err := ParseTxID(tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), *hash)

	for _, txid := range []string{"", "abc", strings.Repeat("z", 64), strings.Repeat("a", 65)} {
		_, err := ParseTxID(txid)
		require.ErrorIs(t, err, ErrInvalidTxID, txid)
	}
}

func TestWitnessHex(t *testing.T) {
	tx, _ := revealTx(t)
	witness, err := WitnessHex(tx)
	require.NoError(t, err)

	env, err := envelope.Parse(witness)
	require.NoError(t, err)
	require.Equal(t, "Hello, world!", string(env.Content))

	_, err = WitnessHex(wire.NewMsgTx(2))
	require.ErrorIs(t, err, ErrNoWitness)
}

func TestEsploraWitnessHex(t *testing.T) {
	tx, txHex := revealTx(t)
	txid := tx.TxHash().String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tx/"+txid+"/hex" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(txHex + "\n"))
	}))
	defer srv.Close()

	e := testEsplora("primary", srv.URL+"/api")
	defer e.Close()

	witness, err := e.WitnessHex(context.Background(), txid)
	require.NoError(t, err)
	env, err := envelope.Parse(witness)
	require.NoError(t, err)
	require.Equal(t, "text/plain", env.ContentType)
}

func TestEsploraRetries(t *testing.T) {
	tx, txHex := revealTx(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(txHex))
	}))
	defer srv.Close()

	_, err := testEsplora("primary", srv.URL).WitnessHex(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestEsploraNotFoundIsPermanent(t *testing.T) {
	tx, _ := revealTx(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testEsplora("primary", srv.URL).WitnessHex(context.Background(), tx.TxHash().String())
	require.ErrorIs(t, err, ErrStatus)
	require.Equal(t, int32(1), calls.Load())
}

func TestEsploraBadBody(t *testing.T) {
	tx, _ := revealTx(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not hex"))
	}))
	defer srv.Close()

	_, err := testEsplora("primary", srv.URL).WitnessHex(context.Background(), tx.TxHash().String())
	require.Error(t, err)
}

type stubSource struct {
	name    string
	witness string
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Close() error { return nil }
func (s *stubSource) WitnessHex(context.Context, string) (string, error) {
	s.calls++
	return s.witness, s.err
}
func (s *stubSource) Transaction(_ context.Context, txid string) (*Transaction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Transaction{TxID: txid}, nil
}
func (s *stubSource) Block(context.Context, string) (*Block, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Block{Height: 1}, nil
}

func TestFallback(t *testing.T) {
	tx, _ := revealTx(t)
	txid := tx.TxHash().String()
	failure := errors.New("connection refused")

	primary := &stubSource{name: "primary", err: failure}
	secondary := &stubSource{name: "fallback", witness: "00"}
	f := NewFallback(nil, primary, secondary)

	witness, err := f.WitnessHex(context.Background(), txid)
	require.NoError(t, err)
	require.Equal(t, "00", witness)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)

	secondary.err = errors.New("timeout")
	_, err = f.WitnessHex(context.Background(), txid)
	require.ErrorIs(t, err, failure)
	require.ErrorContains(t, err, "fallback: timeout")

	_, err = f.WitnessHex(context.Background(), "nope")
	require.ErrorIs(t, err, ErrInvalidTxID)
	require.Equal(t, 2, primary.calls)
}

func TestFallbackStopsOnMissingWitness(t *testing.T) {
	tx, _ := revealTx(t)
	primary := &stubSource{name: "primary", err: ErrNoWitness}
	secondary := &stubSource{name: "fallback", witness: "00"}

	_, err := NewFallback(nil, primary, secondary).WitnessHex(context.Background(), tx.TxHash().String())
	require.ErrorIs(t, err, ErrNoWitness)
	require.Equal(t, 0, secondary.calls)
}

func TestNewPublic(t *testing.T) {
	src, err := New(DefaultConfig())
	require.NoError(t, err)
	defer src.Close()

	f, ok := src.(*Fallback)
	require.True(t, ok)
	require.Len(t, f.sources, 2)
	require.Equal(t, "primary", f.sources[0].Name())

	cfg := DefaultConfig()
	cfg.PublicEndpoint, cfg.FallbackEndpoint = "", ""
	_, err = New(cfg)
	require.Error(t, err)
}

func TestFallbackStopsOnUnconfirmed(t *testing.T) {
	tx, _ := revealTx(t)
	primary := &stubSource{name: "primary", err: ErrUnconfirmed}
	secondary := &stubSource{name: "fallback"}

	_, err := NewFallback(nil, primary, secondary).Block(context.Background(), tx.TxHash().String())
	require.ErrorIs(t, err, ErrUnconfirmed)
	require.Equal(t, 0, secondary.calls)

	primary.err = errors.New("connection refused")
	block, err := NewFallback(nil, primary, secondary).Block(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, int64(1), block.Height)
}

func TestNewTransaction(t *testing.T) {
	tx, _ := revealTx(t)
	got := NewTransaction(tx, nil)

	require.Equal(t, tx.TxHash().String(), got.TxID)
	require.Equal(t, tx.WitnessHash().String(), got.WTxID)
	require.NotEqual(t, got.TxID, got.WTxID)
	require.Equal(t, int32(2), got.Version)
	require.Equal(t, tx.SerializeSize(), got.Size)
	require.Equal(t, int64(tx.SerializeSizeStripped()*3+tx.SerializeSize()), got.Weight)
	require.Equal(t, (got.Weight+3)/4, got.VSize)

	require.Len(t, got.Inputs, 1)
	require.Len(t, got.Inputs[0].Witness, 3)
	require.Equal(t, tx.TxIn[0].PreviousOutPoint.Hash.String(), got.Inputs[0].TxID)

	require.Len(t, got.Outputs, 1)
	require.Equal(t, int64(546), got.Outputs[0].Value)
	require.Equal(t, "witness_v1_taproot", got.Outputs[0].Type)
	require.True(t, strings.HasPrefix(got.Outputs[0].Address, "bc1p"), got.Outputs[0].Address)
	require.False(t, got.Status.Confirmed)
}

func chainServer(t *testing.T, chain *internal.Chain) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("GET /api/", chain.EsploraHandler())
	mux.Handle("POST /{$}", chain.NodeHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEsploraTransactionAndBlock(t *testing.T) {
	tx, _ := revealTx(t)
	pending, err := internal.RevealTx(&envelope.Envelope{ContentType: "text/plain", Content: []byte("pending")})
	require.NoError(t, err)

	chain := internal.NewChain(840000, tx)
	chain.Mempool = append(chain.Mempool, pending)
	e := testEsplora("primary", chainServer(t, chain).URL+"/api/")

	got, err := e.Transaction(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, tx.TxHash().String(), got.TxID)
	require.True(t, got.Status.Confirmed)
	require.Equal(t, chain.BlockHash(), got.Status.BlockHash)
	require.Equal(t, chain.Header.Timestamp.Unix(), got.Status.BlockTime)

	block, err := e.Block(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, chain.BlockHash(), block.Hash)
	require.Equal(t, int64(840000), block.Height)
	require.Equal(t, 1, block.TxCount)

	got, err = e.Transaction(context.Background(), pending.TxHash().String())
	require.NoError(t, err)
	require.False(t, got.Status.Confirmed)

	_, err = e.Block(context.Background(), pending.TxHash().String())
	require.ErrorIs(t, err, ErrUnconfirmed)

	_, err = e.Block(context.Background(), strings.Repeat("ab", 32))
	require.ErrorIs(t, err, ErrStatus)
}

func nodeConfig(srv *httptest.Server) Config {
	cfg := DefaultConfig()
	cfg.UsePublicAPI = false
	cfg.NodeHost = srv.URL
	cfg.NodeUser, cfg.NodePass = "user", "pass"
	return cfg
}

func counterValue(t *testing.T, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.SourceFetchCounter.WithLabelValues(labels...).Write(&m))
	return m.GetCounter().GetValue()
}

func TestNodeWitnessHex(t *testing.T) {
	tx, _ := revealTx(t)
	srv := chainServer(t, internal.NewChain(840000, tx))

	src, err := New(nodeConfig(srv))
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, "node", src.Name())

	before := counterValue(t, "node", "witness", "success")
	witness, err := src.WitnessHex(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	env, err := envelope.Parse(witness)
	require.NoError(t, err)
	require.Equal(t, "Hello, world!", string(env.Content))
	require.Equal(t, before+1, counterValue(t, "node", "witness", "success"))

	before = counterValue(t, "node", "witness", "error")
	_, err = src.WitnessHex(context.Background(), strings.Repeat("ab", 32))
	require.Error(t, err)
	require.Equal(t, before+1, counterValue(t, "node", "witness", "error"))
}

func TestNodeTransactionAndBlock(t *testing.T) {
	tx, _ := revealTx(t)
	pending, err := internal.RevealTx(&envelope.Envelope{ContentType: "text/plain", Content: []byte("pending")})
	require.NoError(t, err)

	chain := internal.NewChain(840000, tx)
	chain.Mempool = append(chain.Mempool, pending)
	node, err := NewNode(nodeConfig(chainServer(t, chain)))
	require.NoError(t, err)
	defer node.Close()

	got, err := node.Transaction(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, tx.TxHash().String(), got.TxID)
	require.True(t, got.Status.Confirmed)
	require.Equal(t, chain.BlockHash(), got.Status.BlockHash)
	require.Equal(t, "witness_v1_taproot", got.Outputs[0].Type)

	block, err := node.Block(context.Background(), tx.TxHash().String())
	require.NoError(t, err)
	require.Equal(t, chain.BlockHash(), block.Hash)
	require.Equal(t, int64(840000), block.Height)
	require.Equal(t, 1, block.TxCount)

	_, err = node.Block(context.Background(), pending.TxHash().String())
	require.ErrorIs(t, err, ErrUnconfirmed)
}

func TestNodeChainInfo(t *testing.T) {
	chain := internal.NewChain(840000)
	node, err := NewNode(nodeConfig(chainServer(t, chain)))
	require.NoError(t, err)
	defer node.Close()

	info, err := node.ChainInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "main", info.Chain)
	require.Equal(t, int32(840000), info.Blocks)
	require.Equal(t, chain.BlockHash(), info.BestBlockHash)
}

func TestNodeTimeout(t *testing.T) {
	tx, _ := revealTx(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := nodeConfig(srv)
	cfg.Timeout = 50 * time.Millisecond
	node, err := NewNode(cfg)
	require.NoError(t, err)
	defer node.Close()

	start := time.Now()
	_, err = node.WitnessHex(context.Background(), tx.TxHash().String())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = node.ChainInfo(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
