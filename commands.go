package ordextract

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/socheatsok78/ordextract/envelope"
	"github.com/socheatsok78/ordextract/filewriter"
	"github.com/socheatsok78/ordextract/internal"
	"github.com/socheatsok78/ordextract/mimetype"
	"github.com/socheatsok78/ordextract/txsource"
	"github.com/urfave/cli/v3"
)

var (
	success = color.New(color.FgGreen, color.Bold)
	label   = color.New(color.FgCyan)
)

func outputFlags(cfg *Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "output-dir",
			Aliases:     []string{"o"},
			Usage:       "Directory the inscription is written to",
			Value:       ".",
			Destination: &cfg.OutputDir,
		},
		&cli.StringFlag{
			Name:        "output-name",
			Usage:       "File name without extension",
			Value:       filewriter.DefaultBase,
			Destination: &cfg.OutputName,
		},
	}
}

func extractCommand(cfg *Config) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Fetch a transaction and save its inscription to a file",
		ArgsUsage: "<txid>",
		Flags:     outputFlags(cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			txid := c.Args().First()
			if txid == "" {
				return fmt.Errorf("missing transaction id")
			}

			src, err := txsource.New(cfg.source())
			if err != nil {
				return err
			}
			defer src.Close()

			ctx, cancel := withTimeout(ctx, cfg)
			defer cancel()
			env, _, err := FetchInscription(ctx, src, txid)
			if err != nil {
				return fmt.Errorf("could not extract inscription from %s: %w", txid, err)
			}
			return saveEnvelope(c.Root().Writer, cfg, env)
		},
	}
}

func decodeCommand(cfg *Config) *cli.Command {
	var toStdout bool
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode the inscription in a hex witness script",
		ArgsUsage: "<hex|->",
		Flags: append(outputFlags(cfg), &cli.BoolFlag{
			Name:        "stdout",
			Usage:       "Write the raw content to stdout instead of a file",
			Destination: &toStdout,
		}),
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			witness, err := readHexArg(c)
			if err != nil {
				return err
			}
			env, err := DecodeWitness(witness)
			if err != nil {
				return err
			}
			if toStdout {
				_, err := c.Root().Writer.Write(env.Content)
				return err
			}
			return saveEnvelope(c.Root().Writer, cfg, env)
		},
	}
}

func annotateCommand(cfg *Config) *cli.Command {
	var byTxID bool
	return &cli.Command{
		Name:      "annotate",
		Usage:     "Explain the envelope byte by byte",
		ArgsUsage: "<hex|-> or --txid <txid>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "txid",
				Usage:       "Treat the argument as a transaction id and fetch its witness",
				Destination: &byTxID,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			var witness string
			if byTxID {
				src, err := txsource.New(cfg.source())
				if err != nil {
					return err
				}
				defer src.Close()

				ctx, cancel := withTimeout(ctx, cfg)
				defer cancel()
				witness, err = src.WitnessHex(ctx, c.Args().First())
				if err != nil {
					return err
				}
			} else {
				var err error
				witness, err = readHexArg(c)
				if err != nil {
					return err
				}
			}

			script, err := envelope.DecodeHex(witness)
			if err != nil {
				return err
			}
			segments, err := envelope.Annotate(script)
			if err != nil {
				return err
			}
			renderSegments(c.Root().Writer, segments)
			return nil
		},
	}
}

func encodeCommand(cfg *Config) *cli.Command {
	var (
		contentType string
		file        string
		revealTx    bool
	)
	return &cli.Command{
		Name:  "encode",
		Usage: "Build the witness script of an inscription",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "content-type",
				Usage:       "MIME type of the content",
				Value:       "text/plain;charset=utf-8",
				Destination: &contentType,
			},
			&cli.StringFlag{
				Name:        "file",
				Usage:       "File holding the content, - for stdin",
				Value:       "-",
				Destination: &file,
			},
			&cli.BoolFlag{
				Name:        "reveal-tx",
				Usage:       "Print a whole reveal transaction instead of the bare script",
				Destination: &revealTx,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			var content []byte
			var err error
			if file == "-" {
				content, err = io.ReadAll(c.Root().Reader)
			} else {
				content, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("error reading content: %w", err)
			}

			env := &envelope.Envelope{ContentType: contentType, Content: content}
			var out string
			if revealTx {
				tx, err := internal.RevealTx(env)
				if err != nil {
					return err
				}
				if out, err = internal.SerializeHex(tx); err != nil {
					return err
				}
			} else {
				script, err := envelope.Marshal(env)
				if err != nil {
					return err
				}
				out = hex.EncodeToString(script)
			}
			_, err = fmt.Fprintln(c.Root().Writer, out)
			return err
		},
	}
}

func chainInfoCommand(cfg *Config) *cli.Command {
	return &cli.Command{
		Name:  "chaininfo",
		Usage: "Show the blockchain state of the local node",
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			if !cfg.UseNode {
				return errors.New("chaininfo is only available with --use-node")
			}
			node, err := txsource.NewNode(cfg.source())
			if err != nil {
				return err
			}
			defer node.Close()

			ctx, cancel := withTimeout(ctx, cfg)
			defer cancel()
			info, err := node.ChainInfo(ctx)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(c.Root().Writer)
			t.AppendRows([]table.Row{
				{"chain", info.Chain},
				{"blocks", info.Blocks},
				{"headers", info.Headers},
				{"best block", info.BestBlockHash},
				{"difficulty", info.Difficulty},
				{"pruned", info.Pruned},
			})
			t.Render()
			return nil
		},
	}
}

func transactionCommand(cfg *Config) *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Usage:     "Print the full transaction as JSON",
		ArgsUsage: "<txid>",
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			src, err := txsource.New(cfg.source())
			if err != nil {
				return err
			}
			defer src.Close()

			ctx, cancel := withTimeout(ctx, cfg)
			defer cancel()
			tx, err := src.Transaction(ctx, c.Args().First())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(tx)
		},
	}
}

func blockCommand(cfg *Config) *cli.Command {
	return &cli.Command{
		Name:      "block",
		Usage:     "Show the block that mined a transaction",
		ArgsUsage: "<txid>",
		Action: func(ctx context.Context, c *cli.Command) error {
			setup(cfg)
			src, err := txsource.New(cfg.source())
			if err != nil {
				return err
			}
			defer src.Close()

			ctx, cancel := withTimeout(ctx, cfg)
			defer cancel()
			block, err := src.Block(ctx, c.Args().First())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(c.Root().Writer)
			t.AppendRows([]table.Row{
				{"hash", block.Hash},
				{"height", block.Height},
				{"time", time.Unix(block.Time, 0).UTC().Format(time.RFC3339)},
				{"transactions", block.TxCount},
				{"size", block.Size},
				{"weight", block.Weight},
			})
			t.Render()
			return nil
		},
	}
}

// readHexArg returns the first argument, or stdin when it is "-" or absent.
func readHexArg(c *cli.Command) (string, error) {
	arg := c.Args().First()
	if arg != "" && arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(c.Root().Reader)
	if err != nil {
		return "", fmt.Errorf("error reading stdin: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return "", errors.New("missing witness hex")
	}
	return string(b), nil
}

func saveEnvelope(w io.Writer, cfg *Config, env *envelope.Envelope) error {
	path, err := filewriter.Write(cfg.OutputDir, cfg.OutputName, env)
	if err != nil {
		return err
	}
	label.Fprint(w, "MIME Type: ")
	fmt.Fprintln(w, env.ContentType)
	label.Fprint(w, "Category:  ")
	fmt.Fprintln(w, mimetype.CategoryOf(env.ContentType))
	success.Fprintf(w, "Inscription saved to %s (%d bytes)\n", path, env.Size())
	return nil
}

const maxSegmentHex = 48

func renderSegments(w io.Writer, segments []envelope.Segment) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Offset", "Bytes", "Meaning"})
	for _, s := range segments {
		h := s.Hex
		if len(h) > maxSegmentHex {
			h = h[:maxSegmentHex] + "..."
		}
		t.AppendRow(table.Row{s.Offset, h, s.Label})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
