// Package inventory reads dealer inventory exports for batch decoding.
package inventory

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/fleetmarket/vinfill/internal/decode"
)

// Entry is one VIN and the 1-based row it was read from.
type Entry struct {
	Row int
	VIN string
}

// ReadVINs reads VINs from a .csv or .xlsx file. The column headed "vin"
// is used when present, otherwise the first column. Blank cells and
// repeated VINs are skipped; malformed VINs are returned as read so the
// caller can report them.
func ReadVINs(path string) ([]Entry, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, eris.Errorf("inventory: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return collect(rows), nil
}

func collect(rows [][]string) []Entry {
	if len(rows) == 0 {
		return nil
	}
	col, start := 0, 0
	for i, cell := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(cell), "vin") {
			col, start = i, 1
			break
		}
	}

	seen := make(map[string]bool)
	var out []Entry
	for i := start; i < len(rows); i++ {
		if col >= len(rows[i]) {
			continue
		}
		vin := decode.NormalizeVIN(rows[i][col])
		if vin == "" || seen[vin] {
			continue
		}
		seen[vin] = true
		out = append(out, Entry{Row: i + 1, VIN: vin})
	}
	return out
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // allow variable fields
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "inventory: read csv row")
		}
		rows = append(rows, rec)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("inventory: workbook has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
