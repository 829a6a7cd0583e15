package decode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fleetmarket/vinfill/internal/enum"
	"github.com/fleetmarket/vinfill/internal/payload"
	"github.com/fleetmarket/vinfill/pkg/epa"
	"github.com/fleetmarket/vinfill/pkg/nhtsa"
)

// Provider names reported in dataSources.
const (
	SourceNHTSA = "nhtsa"
	SourceEPA   = "epa"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// upperMakes are brands styled in capitals.
var upperMakes = map[string]bool{"GMC": true, "BMW": true, "MINI": true, "IC BUS": true}

// normalizeMake turns vPIC's upper-case make into display form.
func normalizeMake(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || upperMakes[strings.ToUpper(raw)] {
		return raw
	}
	return titleCaser.String(strings.ToLower(raw))
}

var gvwrRange = regexp.MustCompile(`(?:([\d,]+)\s*-\s*)?([\d,]+)\s*lb`)

// gvwrPounds reads the upper bound of a vPIC GVWR class, e.g.
// "Class 5: 16,001 - 19,500 lb (7,258 - 8,845 kg)" is 19500. Open-ended
// classes ("33,001 lb and above") report their stated bound.
func gvwrPounds(class string) (float64, bool) {
	m := gvwrRange.FindStringSubmatch(class)
	if m == nil {
		return 0, false
	}
	return parseNumber(m[2])
}

var leadingNumber = regexp.MustCompile(`-?[\d,]*\.?\d+`)

// parseNumber reads the first number in s, ignoring thousands separators
// and trailing units.
func parseNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var rearWheelToken = regexp.MustCompile(`\b(DRW|SRW)\b`)

// inferRearWheels finds a DRW/SRW marker in the series or trim.
func inferRearWheels(texts ...string) (enum.RearWheels, bool) {
	for _, t := range texts {
		if m := rearWheelToken.FindString(strings.ToUpper(t)); m != "" {
			return enum.RearWheels(m), true
		}
	}
	return "", false
}

// confidence grades a vPIC answer. ErrorCode "0" is a clean decode; any
// other code with make and model still decoded is a partial one.
func confidence(d *nhtsa.Decoded) enum.Confidence {
	code := strings.TrimSpace(d.ErrorCode)
	switch {
	case code == "0":
		return enum.ConfidenceHigh
	case strings.TrimSpace(d.Make) != "" && strings.TrimSpace(d.Model) != "":
		return enum.ConfidenceMedium
	default:
		return enum.ConfidenceLow
	}
}

func engineDescription(d *nhtsa.Decoded) string {
	var parts []string
	if l, ok := parseNumber(d.DisplacementL); ok && l > 0 {
		parts = append(parts, strconv.FormatFloat(l, 'f', 1, 64)+"L")
	}
	if c, ok := parseNumber(d.EngineCylinders); ok && c > 0 {
		parts = append(parts, fmt.Sprintf("%d-Cyl", int(c)))
	}
	if m := strings.TrimSpace(d.EngineModel); m != "" {
		parts = append(parts, m)
	}
	return strings.Join(parts, " ")
}

func transmission(d *nhtsa.Decoded) string {
	style := strings.TrimSpace(d.TransmissionStyle)
	if style == "" {
		return ""
	}
	if n, ok := parseNumber(d.TransmissionSpeeds); ok && n > 0 {
		return fmt.Sprintf("%d-Speed %s", int(n), style)
	}
	return style
}

func axleDescription(d *nhtsa.Decoded) string {
	if c := strings.TrimSpace(d.AxleConfiguration); c != "" {
		return c
	}
	if n, ok := parseNumber(d.Axles); ok && n > 0 {
		return fmt.Sprintf("%d Axles", int(n))
	}
	return ""
}

// flagFromEquipment maps vPIC equipment text to a flag. Anything other
// than "Not Applicable" names a fitted system ("Direct", "Standard").
func flagFromEquipment(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, false
	}
	return !strings.EqualFold(s, "Not Applicable"), true
}

// buildRaw assembles the provider payload. Keys with no data are left out
// so reconciliation leaves those fields alone.
func buildRaw(d *nhtsa.Decoded, econ *epa.Economy) map[string]any {
	raw := map[string]any{}
	setText := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			raw[key] = v
		}
	}
	setNumber := func(key, v string) {
		if n, ok := parseNumber(v); ok {
			raw[key] = n
		}
	}

	setNumber("year", d.ModelYear)
	setText("make", normalizeMake(d.Make))
	setText("model", d.Model)
	setText("series", d.Series)
	setText("trim", d.Trim)
	setText("bodyClass", d.BodyClass)
	setText("fuelTypePrimary", d.FuelTypePrimary)
	setText("driveType", d.DriveType)
	setText("engineModel", d.EngineModel)
	setText("engineDescription", engineDescription(d))
	setNumber("horsepower", d.EngineHP)
	setText("transmission", transmission(d))
	setNumber("wheelbase", d.WheelBase)
	setText("axleDescription", axleDescription(d))
	setNumber("batteryVoltage", d.BatteryV)
	setNumber("curbWeight", d.CurbWeightLB)
	setNumber("seatingCapacity", d.Seats)
	if lb, ok := gvwrPounds(d.GVWR); ok {
		raw["gvwr"] = lb
	}
	if rw, ok := inferRearWheels(d.Series, d.Trim); ok {
		raw["rearWheels"] = string(rw)
	}
	if b, ok := flagFromEquipment(d.TPMS); ok {
		raw["tpms"] = b
	}
	if b, ok := flagFromEquipment(d.BackupCamera); ok {
		raw["backupCamera"] = b
	}

	sources := []string{SourceNHTSA}
	if econ != nil {
		sources = append(sources, SourceEPA)
		if econ.MPGCity > 0 {
			raw["mpgCity"] = econ.MPGCity
		}
		if econ.MPGHighway > 0 {
			raw["mpgHighway"] = econ.MPGHighway
		}
		if mpge, ok := econ.MPGe(); ok {
			raw["mpge"] = mpge
		}
		if _, ok := raw["fuelTypePrimary"]; !ok {
			setText("fuelTypePrimary", econ.FuelType)
		}
		if _, ok := raw["driveType"]; !ok {
			setText("driveType", econ.Drive)
		}
		if _, ok := raw["transmission"]; !ok {
			setText("transmission", econ.Transmission)
		}
	}

	raw[payload.KeyDataSources] = sources
	raw[payload.KeyNHTSAConfidence] = string(confidence(d))
	raw[payload.KeyEPAAvailable] = econ != nil
	return raw
}
