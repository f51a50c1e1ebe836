package ordextract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/chi-middleware/proxy"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpmetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmiddleware "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
	"github.com/socheatsok78/ordextract/envelope"
	"github.com/socheatsok78/ordextract/middleware"
	"github.com/socheatsok78/ordextract/mimetype"
	"github.com/socheatsok78/ordextract/sentrymiddleware"
	"github.com/socheatsok78/ordextract/txsource"
	"github.com/urfave/cli/v3"
)

type contextKey string

const (
	contextKeyTxID     contextKey = "txid"
	contextKeyEnvelope contextKey = "envelope"
	contextKeyWitness  contextKey = "witness"
)

// maxDecodeBody bounds POST /decode, a full block worth of hex.
const maxDecodeBody = 8 << 20

var httpMetrics = httpmiddleware.New(httpmiddleware.Config{
	Recorder: httpmetrics.NewRecorder(httpmetrics.Config{Prefix: Name}),
})

func serveCommand(cfg *Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve decoded inscriptions over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen-addr",
				Usage:       "The address to listen on",
				Value:       ":8080",
				Sources:     cli.EnvVars("ORDEXTRACT_LISTEN_ADDR"),
				Destination: &cfg.ListenAddress,
			},
			&cli.StringSliceFlag{
				Name:        "allowed-origin",
				Usage:       "A list of origins that are allowed to access the service. e.g. https://example.com",
				Destination: &cfg.AccessControlAllowOrigin,
				Validator: func(s []string) error {
					for _, origin := range s {
						if origin == "*" {
							continue
						}
						if err := validateEndpoint(origin); err != nil {
							return err
						}
					}
					return nil
				},
			},
			&cli.StringFlag{
				Name:        "sentry-dsn",
				Usage:       "Report server errors to this Sentry DSN",
				Sources:     cli.EnvVars("SENTRY_DSN"),
				Destination: &cfg.SentryDSN,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: Name + "@" + Version,
		})
		if err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	src, err := txsource.New(cfg.source())
	if err != nil {
		return err
	}
	defer src.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           NewRouter(cfg, src),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group
	g.Add(func() error {
		level.Info(logger).Log("msg", "starting server", "addr", cfg.ListenAddress, "public_api", !cfg.UseNode)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) || errors.Is(err, context.Canceled) {
		level.Info(logger).Log("msg", "server stopped", "reason", err)
		return nil
	}
	return err
}

// NewRouter wires the HTTP routes around src.
func NewRouter(cfg *Config, src txsource.Source) http.Handler {
	r := chi.NewRouter()

	r.Use(proxy.ForwardedHeaders())
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestIDHeader)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.SentryDSN != "" {
		r.Use(sentrymiddleware.Sentry(&sentryhttp.Options{Repanic: true}))
	}
	r.Use(ResponseHeaderMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AccessControlAllowOrigin,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	// Heartbeat
	r.Use(chimiddleware.Heartbeat("/heartbeat"))

	// Fetching may walk through retries and a fallback endpoint.
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("welcome"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(std.HandlerProvider("/decode", httpMetrics)).Post("/decode", DecodeHandler)
	r.Route("/inscriptions/{txid}", func(r chi.Router) {
		r.Use(std.HandlerProvider("/inscriptions/{txid}", httpMetrics))
		r.Get("/tx", TransactionHandler(src))
		r.Get("/block", BlockHandler(src))
		r.Group(func(r chi.Router) {
			r.Use(InscriptionContextHandler(src))
			r.Get("/", ContentHandler)
			r.Get("/envelope", EnvelopeHandler)
		})
	})

	return r
}

// InscriptionContextHandler fetches and decodes the inscription named by
// the txid URL parameter and stores it in the request context.
func InscriptionContextHandler(src txsource.Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimiddleware.GetReqID(r.Context())
			txid := strings.ToLower(chi.URLParam(r, "txid"))

			env, witness, err := FetchInscription(r.Context(), src, txid)
			if err != nil {
				level.Error(logger).Log("id", id, "msg", "error fetching inscription", "txid", txid, "err", err)
				writeError(w, r, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, contextKeyTxID, txid)
			ctx = context.WithValue(ctx, contextKeyEnvelope, env)
			ctx = context.WithValue(ctx, contextKeyWitness, witness)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContentHandler serves the raw inscription with its own content type.
func ContentHandler(w http.ResponseWriter, r *http.Request) {
	env := r.Context().Value(contextKeyEnvelope).(*envelope.Envelope)
	txid := r.Context().Value(contextKeyTxID).(string)

	contentType := env.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+txid+"."+mimetype.Extension(env.ContentType)+`"`)
	http.ServeContent(w, r, "", time.Time{}, env.NewReader())
}

// EnvelopeHandler describes the inscription as JSON.
func EnvelopeHandler(w http.ResponseWriter, r *http.Request) {
	env := r.Context().Value(contextKeyEnvelope).(*envelope.Envelope)
	witness := r.Context().Value(contextKeyWitness).(string)

	res, err := NewEnvelopeResponse(env, witness, r.URL.Query().Has("annotate"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res.TxID = r.Context().Value(contextKeyTxID).(string)
	writeJSON(w, http.StatusOK, res)
}

// TransactionHandler describes the whole transaction as JSON.
func TransactionHandler(src txsource.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		txid := strings.ToLower(chi.URLParam(r, "txid"))

		tx, err := src.Transaction(r.Context(), txid)
		if err != nil {
			level.Error(logger).Log("id", id, "msg", "error fetching transaction", "txid", txid, "err", err)
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

// BlockHandler describes the block that mined the transaction.
func BlockHandler(src txsource.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		txid := strings.ToLower(chi.URLParam(r, "txid"))

		block, err := src.Block(r.Context(), txid)
		if err != nil {
			level.Error(logger).Log("id", id, "msg", "error fetching block", "txid", txid, "err", err)
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, block)
	}
}

// DecodeHandler decodes a witness hex posted in the request body.
func DecodeHandler(w http.ResponseWriter, r *http.Request) {
	id := chimiddleware.GetReqID(r.Context())
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDecodeBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	witness := string(body)
	env, err := DecodeWitness(witness)
	if err != nil {
		level.Info(logger).Log("id", id, "msg", "error decoding envelope", "err", err)
		writeError(w, r, err)
		return
	}

	res, err := NewEnvelopeResponse(env, witness, r.URL.Query().Has("annotate"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type EnvelopeResponse struct {
	TxID        string             `json:"txid,omitempty"`
	ContentType string             `json:"content_type"`
	Category    mimetype.Category  `json:"category"`
	Extension   string             `json:"extension"`
	Size        int                `json:"size"`
	Text        string             `json:"text,omitempty"`
	Segments    []envelope.Segment `json:"segments,omitempty"`
}

// maxInlineText is the largest text inscription embedded in the JSON view.
const maxInlineText = 64 << 10

func NewEnvelopeResponse(env *envelope.Envelope, witness string, annotate bool) (*EnvelopeResponse, error) {
	res := &EnvelopeResponse{
		ContentType: env.ContentType,
		Category:    mimetype.CategoryOf(env.ContentType),
		Extension:   mimetype.Extension(env.ContentType),
		Size:        env.Size(),
	}
	if res.Category == mimetype.Text && env.Size() <= maxInlineText {
		res.Text = string(env.Content)
	}
	if annotate {
		script, err := envelope.DecodeHex(witness)
		if err != nil {
			return nil, err
		}
		if res.Segments, err = envelope.Annotate(script); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps decode failures to 422, bad ids to 400, unmined
// transactions to 404 and source failures to 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var decodeErr *envelope.DecodeError
	switch {
	case errors.Is(err, txsource.ErrInvalidTxID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, txsource.ErrUnconfirmed):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &decodeErr), errors.Is(err, txsource.ErrNoWitness):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
