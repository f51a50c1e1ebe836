package internal

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/wire"
)

// Chain is a fixed set of transactions, mined together in one block or
// waiting in the mempool. It answers the Esplora and bitcoind RPC calls
// ordextract makes.
type Chain struct {
	Header  wire.BlockHeader
	Height  int64
	Mined   []*wire.MsgTx
	Mempool []*wire.MsgTx
}

// NewChain mines txs into a block at height.
func NewChain(height int64, txs ...*wire.MsgTx) *Chain {
	return &Chain{
		Header: wire.BlockHeader{
			Version:   0x20000000,
			Timestamp: time.Unix(1_700_000_000+height*600, 0),
			Bits:      0x17034219,
			Nonce:     uint32(height),
		},
		Height: height,
		Mined:  txs,
	}
}

func (c *Chain) BlockHash() string {
	return c.Header.BlockHash().String()
}

func (c *Chain) lookup(txid string) (tx *wire.MsgTx, mined bool) {
	for _, tx := range c.Mined {
		if tx.TxHash().String() == txid {
			return tx, true
		}
	}
	for _, tx := range c.Mempool {
		if tx.TxHash().String() == txid {
			return tx, false
		}
	}
	return nil, false
}

func (c *Chain) blockSize() (size, weight int64) {
	size = wire.MaxBlockHeaderPayload
	for _, tx := range c.Mined {
		size += int64(tx.SerializeSize())
		weight += int64(tx.SerializeSizeStripped())*3 + int64(tx.SerializeSize())
	}
	return size, weight + wire.MaxBlockHeaderPayload*4
}

// EsploraHandler serves tx/{txid}/hex, tx/{txid}/status and block/{hash}
// below /api/ the way mempool.space does.
func (c *Chain) EsploraHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tx/{txid}/hex", func(w http.ResponseWriter, r *http.Request) {
		tx, _ := c.lookup(r.PathValue("txid"))
		if tx == nil {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		txHex, err := SerializeHex(tx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(txHex))
	})
	mux.HandleFunc("GET /api/tx/{txid}/status", func(w http.ResponseWriter, r *http.Request) {
		tx, mined := c.lookup(r.PathValue("txid"))
		switch {
		case tx == nil:
			http.Error(w, "Transaction not found", http.StatusNotFound)
		case !mined:
			writeJSON(w, map[string]any{"confirmed": false})
		default:
			writeJSON(w, map[string]any{
				"confirmed":    true,
				"block_height": c.Height,
				"block_hash":   c.BlockHash(),
				"block_time":   c.Header.Timestamp.Unix(),
			})
		}
	})
	mux.HandleFunc("GET /api/block/{hash}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("hash") != c.BlockHash() {
			http.Error(w, "Block not found", http.StatusNotFound)
			return
		}
		size, weight := c.blockSize()
		writeJSON(w, map[string]any{
			"id":        c.BlockHash(),
			"height":    c.Height,
			"version":   c.Header.Version,
			"timestamp": c.Header.Timestamp.Unix(),
			"tx_count":  len(c.Mined),
			"size":      size,
			"weight":    weight,
		})
	})
	return mux
}

// rpcRequest is the part of a JSON-RPC 1.0 request the node handler reads.
type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

// NodeHandler answers bitcoind JSON-RPC requests posted to /. getinfo is
// left unimplemented like in Bitcoin Core, so rpcclient detects a bitcoind
// backend through getnetworkinfo.
func (c *Chain) NodeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, rpcErr := c.call(req)
		if rpcErr != nil {
			writeJSON(w, map[string]any{"result": nil, "error": rpcErr, "id": req.ID})
			return
		}
		writeJSON(w, map[string]any{"result": result, "error": nil, "id": req.ID})
	})
}

func (c *Chain) call(req rpcRequest) (any, *btcjson.RPCError) {
	param := func(i int) string {
		if i >= len(req.Params) {
			return ""
		}
		return strings.Trim(string(req.Params[i]), `"`)
	}

	switch req.Method {
	case "getnetworkinfo":
		return map[string]any{"version": 270000, "subversion": "/Satoshi:27.0.0/", "protocolversion": 70016}, nil

	case "getblockchaininfo":
		return map[string]any{
			"chain":         "main",
			"blocks":        c.Height,
			"headers":       c.Height,
			"bestblockhash": c.BlockHash(),
			"mediantime":    c.Header.Timestamp.Unix(),
			"pruned":        false,
		}, nil

	case "getrawtransaction":
		tx, mined := c.lookup(param(0))
		if tx == nil {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCNoTxInfo, "No such mempool or blockchain transaction")
		}
		txHex, err := SerializeHex(tx)
		if err != nil {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCInternal.Code, err.Error())
		}
		if param(1) == "0" || param(1) == "false" || param(1) == "" {
			return txHex, nil
		}
		res := btcjson.TxRawResult{
			Hex:     txHex,
			Txid:    tx.TxHash().String(),
			Hash:    tx.WitnessHash().String(),
			Size:    int32(tx.SerializeSize()),
			Version: uint32(tx.Version),
		}
		if mined {
			res.BlockHash = c.BlockHash()
			res.Confirmations = 1
			res.Time = c.Header.Timestamp.Unix()
			res.Blocktime = c.Header.Timestamp.Unix()
		}
		return res, nil

	case "getblock":
		if param(0) != c.BlockHash() {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCBlockNotFound, "Block not found")
		}
		size, weight := c.blockSize()
		txids := make([]string, 0, len(c.Mined))
		for _, tx := range c.Mined {
			txids = append(txids, tx.TxHash().String())
		}
		return btcjson.GetBlockVerboseResult{
			Hash:          c.BlockHash(),
			Confirmations: 1,
			Size:          int32(size),
			Weight:        int32(weight),
			Height:        c.Height,
			Version:       c.Header.Version,
			MerkleRoot:    c.Header.MerkleRoot.String(),
			Tx:            txids,
			Time:          c.Header.Timestamp.Unix(),
			Nonce:         c.Header.Nonce,
			PreviousHash:  c.Header.PrevBlock.String(),
		}, nil

	default:
		return nil, btcjson.ErrRPCMethodNotFound
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
