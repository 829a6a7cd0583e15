package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/inventory"
	"github.com/fleetmarket/vinfill/internal/reconcile"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

var (
	batchInput       string
	batchOutput      string
	batchConcurrency int
	batchLimit       int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Decode every VIN in an inventory export (.csv or .xlsx)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}

		env, err := initDecoder(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := inventory.ReadVINs(batchInput)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(entries) > batchLimit {
			entries = entries[:batchLimit]
		}

		out := io.Writer(os.Stdout)
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "batch: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		_, err = processBatch(ctx, entries, cfg.Batch.Concurrency, env.Decoder, out)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "inventory file (.csv or .xlsx)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write JSON lines here instead of stdout")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel decodes (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of VINs to decode (0 = all)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// batchLine is one JSON line of batch output.
type batchLine struct {
	Row        int      `json:"row"`
	VIN        string   `json:"vin"`
	OK         bool     `json:"ok"`
	Error      string   `json:"error,omitempty"`
	Origin     string   `json:"origin,omitempty"`
	AutoFilled int      `json:"auto_filled,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// batchSummary counts batch outcomes.
type batchSummary struct {
	Succeeded int64
	Failed    int64
}

// processBatch decodes entries concurrently and writes one JSON line per
// entry, in completion order. Individual failures are reported in the
// output and never abort the batch.
func processBatch(ctx context.Context, entries []inventory.Entry, concurrency int, dec vinDecoder, w io.Writer) (batchSummary, error) {
	if len(entries) == 0 {
		zap.L().Info("no VINs found")
		return batchSummary{}, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("vins", len(entries)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		succeeded, failed atomic.Int64
		mu                sync.Mutex
		enc               = json.NewEncoder(w)
	)
	emit := func(line batchLine) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(line)
	}

	engine := reconcile.NewEngine()
	for _, entry := range entries {
		g.Go(func() error {
			line := batchLine{Row: entry.Row, VIN: entry.VIN}
			log := zap.L().With(zap.String("vin", entry.VIN), zap.Int("row", entry.Row))

			res, err := decodeEntry(gctx, dec, entry)
			if err != nil {
				failed.Add(1)
				line.Error = err.Error()
				log.Warn("decode failed", zap.Error(err))
				return emit(line)
			}

			out := engine.Apply(res.Payload, form.New(), wizard.StepVehicle)
			succeeded.Add(1)
			line.OK = true
			line.Origin = res.Origin
			line.AutoFilled = out.Summary.AutoFilled
			line.Fields = out.Provenance.Fields()
			line.Warnings = res.Warnings
			return emit(line)
		})
	}

	if err := g.Wait(); err != nil {
		return batchSummary{}, eris.Wrap(err, "batch processing")
	}

	summary := batchSummary{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
	)
	return summary, nil
}

// decodeEntry rejects malformed VINs before they reach a provider.
func decodeEntry(ctx context.Context, dec vinDecoder, entry inventory.Entry) (decode.Result, error) {
	if err := decode.ValidateVIN(entry.VIN); err != nil {
		return decode.Result{}, err
	}
	return dec.Decode(ctx, entry.VIN)
}
