package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleetmarket/vinfill/internal/reconcile"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the form fields a decode can fill and the payload keys they read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return formatFields(os.Stdout, reconcile.DecodeFields())
	},
}

func formatFields(out io.Writer, specs []reconcile.FieldSpec) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tPAYLOAD KEYS")
	for _, f := range specs {
		fmt.Fprintf(w, "%s\t%s\n", f.Name, strings.Join(f.Keys, ", "))
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
