package internal

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/socheatsok78/ordextract/envelope"
)

// RevealTx builds a taproot script-path spend whose first input witness is
// <signature> <pubkey OP_CHECKSIG envelope> <control block>, the layout
// used by inscription reveal transactions. Keys and signature are dummies.
func RevealTx(env *envelope.Envelope) (*wire.MsgTx, error) {
	xOnlyKey := bytes.Repeat([]byte{0x02}, 32)
	prefix, err := txscript.NewScriptBuilder().
		AddData(xOnlyKey).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, err
	}

	script, err := envelope.NewBuilder(env.ContentType).
		Prefix(prefix).
		AddContent(env.Content, envelope.MaxChunkSize).
		Script()
	if err != nil {
		return nil, err
	}

	signature := bytes.Repeat([]byte{0x01}, 64)
	controlBlock := append([]byte{byte(txscript.BaseLeafVersion)}, xOnlyKey...)

	commitTx := chainhash.DoubleHashH(script)
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&commitTx, 0),
		nil,
		wire.TxWitness{signature, script, controlBlock},
	))

	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(xOnlyKey).
		Script()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(546, pkScript))
	return tx, nil
}

// SerializeHex returns the witness serialization of tx as hex.
func SerializeHex(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("error serializing transaction: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
