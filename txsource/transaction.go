package txsource

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Transaction is the decoded view of a transaction together with its
// confirmation status. Field names follow the Esplora JSON.
type Transaction struct {
	TxID     string   `json:"txid"`
	WTxID    string   `json:"wtxid"`
	Version  int32    `json:"version"`
	LockTime uint32   `json:"locktime"`
	Size     int      `json:"size"`
	VSize    int64    `json:"vsize"`
	Weight   int64    `json:"weight"`
	Inputs   []Input  `json:"vin"`
	Outputs  []Output `json:"vout"`
	Status   Status   `json:"status"`
}

type Input struct {
	TxID      string   `json:"txid"`
	Vout      uint32   `json:"vout"`
	ScriptSig string   `json:"scriptsig"`
	Witness   []string `json:"witness,omitempty"`
	Sequence  uint32   `json:"sequence"`
}

type Output struct {
	Value        int64  `json:"value"`
	ScriptPubKey string `json:"scriptpubkey"`
	Type         string `json:"scriptpubkey_type"`
	Address      string `json:"scriptpubkey_address,omitempty"`
}

// Status tells whether and where a transaction was mined.
type Status struct {
	Confirmed bool   `json:"confirmed"`
	BlockHash string `json:"block_hash,omitempty"`
	BlockTime int64  `json:"block_time,omitempty"`
}

// Block summarises the block that mined a transaction.
type Block struct {
	Hash    string `json:"id"`
	Height  int64  `json:"height"`
	Time    int64  `json:"timestamp"`
	TxCount int    `json:"tx_count"`
	Size    int64  `json:"size"`
	Weight  int64  `json:"weight"`
}

// NewTransaction describes tx. Output addresses are encoded for params,
// mainnet when nil. The status is left for the caller to fill in.
func NewTransaction(tx *wire.MsgTx, params *chaincfg.Params) *Transaction {
	if params == nil {
		params = &chaincfg.MainNetParams
	}

	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	t := &Transaction{
		TxID:     tx.TxHash().String(),
		WTxID:    tx.WitnessHash().String(),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Size:     tx.SerializeSize(),
		VSize:    (weight + blockchain.WitnessScaleFactor - 1) / blockchain.WitnessScaleFactor,
		Weight:   weight,
		Inputs:   make([]Input, 0, len(tx.TxIn)),
		Outputs:  make([]Output, 0, len(tx.TxOut)),
	}

	for _, in := range tx.TxIn {
		input := Input{
			TxID:      in.PreviousOutPoint.Hash.String(),
			Vout:      in.PreviousOutPoint.Index,
			ScriptSig: hex.EncodeToString(in.SignatureScript),
			Sequence:  in.Sequence,
		}
		for _, item := range in.Witness {
			input.Witness = append(input.Witness, hex.EncodeToString(item))
		}
		t.Inputs = append(t.Inputs, input)
	}

	for _, out := range tx.TxOut {
		output := Output{
			Value:        out.Value,
			ScriptPubKey: hex.EncodeToString(out.PkScript),
		}
		class, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, params)
		output.Type = class.String()
		if err == nil && len(addrs) == 1 {
			output.Address = addrs[0].EncodeAddress()
		}
		t.Outputs = append(t.Outputs, output)
	}
	return t
}
