package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/reconcile"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

var decodeFormat string

var decodeCmd = &cobra.Command{
	Use:   "decode <vin>",
	Short: "Decode a VIN and show the fields it would fill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDecoder(ctx, "decode")
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := decodeReport(ctx, env.Decoder, args[0])
		if err != nil {
			return err
		}
		return render(os.Stdout, decodeFormat, rep)
	},
}

// report is a decode reconciled into an empty listing form.
type report struct {
	Decode  decode.Result         `json:"decode"`
	Fields  map[string]form.Value `json:"fields"`
	Outcome reconcile.Outcome     `json:"outcome"`
}

type vinDecoder interface {
	Decode(ctx context.Context, vin string) (decode.Result, error)
}

func decodeReport(ctx context.Context, dec vinDecoder, vin string) (*report, error) {
	res, err := dec.Decode(ctx, vin)
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", vin)
	}
	table := form.New()
	out := reconcile.NewEngine().Apply(res.Payload, table, wizard.StepVehicle)
	return &report{Decode: res, Fields: table.Snapshot(), Outcome: out}, nil
}

// render writes v as indented JSON or as YAML. YAML goes through the JSON
// form so both outputs share field names.
func render(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "render: marshal json")
	}
	switch format {
	case "json", "":
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return eris.Wrap(err, "render: reparse json")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "render: marshal yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func init() {
	decodeCmd.Flags().StringVar(&decodeFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(decodeCmd)
}
