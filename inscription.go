package ordextract

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/socheatsok78/ordextract/envelope"
	"github.com/socheatsok78/ordextract/metrics"
	"github.com/socheatsok78/ordextract/txsource"
)

// DecodeWitness decodes witness hex and records the outcome.
func DecodeWitness(witnessHex string) (*envelope.Envelope, error) {
	env, err := envelope.Parse(witnessHex)
	if err != nil {
		metrics.EnvelopeRejectedCounter.WithLabelValues(envelope.Reason(err)).Inc()
		return nil, err
	}
	metrics.EnvelopeDecodedCounter.Inc()
	metrics.EnvelopeContentBytes.Observe(float64(env.Size()))
	return env, nil
}

// FetchInscription retrieves the witness of txid from src and decodes it.
// The witness hex is returned alongside for annotation.
func FetchInscription(ctx context.Context, src txsource.Source, txid string) (*envelope.Envelope, string, error) {
	witness, err := src.WitnessHex(ctx, txid)
	if err != nil {
		return nil, "", err
	}
	level.Debug(logger).Log("msg", "fetched witness", "txid", txid, "source", src.Name(), "bytes", len(witness)/2)

	env, err := DecodeWitness(witness)
	if err != nil {
		level.Warn(logger).Log("msg", "error decoding envelope", "txid", txid, "err", err)
		return nil, witness, err
	}
	level.Info(logger).Log("msg", "decoded inscription", "txid", txid, "content_type", env.ContentType, "size", env.Size())
	return env, witness, nil
}
