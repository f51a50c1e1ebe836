package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/btcsuite/btcd/wire"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/socheatsok78/ordextract/envelope"
	"github.com/socheatsok78/ordextract/internal"
	"github.com/urfave/cli/v3"
)

func main() {
	var logger log.Logger
	logger = log.NewLogfmtLogger(os.Stdout)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)

	cmd := cli.Command{
		Name:  "ord-stub-server",
		Usage: "Serve a synthetic inscription through Esplora and bitcoind RPC compatible APIs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen-addr",
				Usage: "The address to listen on",
				Value: ":3000",
			},
			&cli.StringFlag{
				Name:  "content-type",
				Usage: "MIME type of the served inscription",
				Value: "text/plain;charset=utf-8",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "File holding the inscription content",
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Height of the block that mines the inscription",
				Value: 840000,
			},
			&cli.BoolFlag{
				Name:  "unconfirmed",
				Usage: "Keep the inscription in the mempool",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			listenAddr := c.String("listen-addr")

			content := []byte("Hello, world!")
			if path := c.String("file"); path != "" {
				b, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				content = b
			}

			tx, err := internal.RevealTx(&envelope.Envelope{ContentType: c.String("content-type"), Content: content})
			if err != nil {
				return err
			}
			chain := internal.NewChain(int64(c.Int("height")), tx)
			if c.Bool("unconfirmed") {
				chain.Mined, chain.Mempool = nil, []*wire.MsgTx{tx}
			}
			txid := tx.TxHash().String()

			level.Info(logger).Log("msg", "starting server", "addr", listenAddr, "txid", txid, "block", chain.BlockHash())

			esplora := chain.EsploraHandler()
			node := chain.NodeHandler()

			http.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(200)
				w.Write([]byte("<h1>" + c.Name + "</h1><p>" + txid + "</p>"))
			})
			http.HandleFunc("GET /api/", func(w http.ResponseWriter, r *http.Request) {
				level.Info(logger).Log("msg", "received request", "path", r.URL.Path)
				esplora.ServeHTTP(w, r)
			})
			http.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
				level.Info(logger).Log("msg", "received rpc request")
				node.ServeHTTP(w, r)
			})

			return http.ListenAndServe(listenAddr, nil)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
	}
}
