package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EnvelopeDecodedCounter is a Prometheus counter for the number of envelopes decoded successfully
	EnvelopeDecodedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ordextract_envelope_decoded_total",
		Help: "The number of envelopes decoded successfully",
	})
	// EnvelopeRejectedCounter is a Prometheus counter for the number of witness scripts that failed to decode, by reason
	EnvelopeRejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordextract_envelope_rejected_total",
		Help: "The number of witness scripts that failed to decode",
	}, []string{"reason"})
	// EnvelopeContentBytes is a Prometheus histogram of decoded content sizes
	EnvelopeContentBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ordextract_envelope_content_bytes",
		Help:    "Size of decoded inscription content",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10),
	})
	// SourceFetchCounter is a Prometheus counter for transaction source requests, by source, lookup and result
	SourceFetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordextract_source_fetch_total",
		Help: "The number of lookups per transaction source",
	}, []string{"source", "op", "result"})
)

func init() {
	prometheus.MustRegister(EnvelopeDecodedCounter)
	prometheus.MustRegister(EnvelopeRejectedCounter)
	prometheus.MustRegister(EnvelopeContentBytes)
	prometheus.MustRegister(SourceFetchCounter)
}
