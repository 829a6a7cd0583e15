package enum

import "strings"

// synonym maps one exact provider or dealer spelling onto a member.
type synonym[T ~string] struct {
	raw   string
	value T
}

// Synonym tables are ordered; the first exact match wins.
var driveSynonyms = []synonym[DriveType]{
	// NHTSA vPIC DriveType values.
	{"4WD/4-Wheel Drive/4x4", Drive4WD},
	{"AWD/All-Wheel Drive", DriveAWD},
	{"RWD/Rear-Wheel Drive", DriveRWD},
	{"FWD/Front-Wheel Drive", DriveFWD},
	{"4x2", DriveRWD},
	{"6x4", DriveRWD},
	{"6x6", Drive4WD},
	// EPA drive strings.
	{"4-Wheel or All-Wheel Drive", Drive4WD},
	{"Part-time 4-Wheel Drive", Drive4WD},
	{"4-Wheel Drive", Drive4WD},
	{"All-Wheel Drive", DriveAWD},
	{"Rear-Wheel Drive", DriveRWD},
	{"Front-Wheel Drive", DriveFWD},
	// Dealer phrasing.
	{"Rear Wheel Drive", DriveRWD},
	{"Front Wheel Drive", DriveFWD},
	{"All Wheel Drive", DriveAWD},
	{"Four Wheel Drive", Drive4WD},
	{"4 Wheel Drive", Drive4WD},
	{"4x4", Drive4WD},
}

var fuelSynonyms = []synonym[FuelType]{
	// NHTSA vPIC FuelTypePrimary values.
	{"Gasoline", FuelGasoline},
	{"Diesel", FuelDiesel},
	{"Electric", FuelElectric},
	{"Compressed Natural Gas (CNG)", FuelCNG},
	{"Liquefied Petroleum Gas (propane or LPG)", FuelPropane},
	{"Flexible Fuel Vehicle (FFV)", FuelGasoline},
	// EPA fuelType1 values.
	{"Regular Gasoline", FuelGasoline},
	{"Premium Gasoline", FuelGasoline},
	{"Midgrade Gasoline", FuelGasoline},
	{"Electricity", FuelElectric},
	{"Natural Gas", FuelCNG},
	// Dealer phrasing.
	{"Gas", FuelGasoline},
	{"Propane", FuelPropane},
	{"LPG", FuelPropane},
	{"CNG", FuelCNG},
	{"Hybrid Electric", FuelHybrid},
	{"Plug-in Hybrid", FuelHybrid},
	{"EV", FuelElectric},
}

var rearSynonyms = []synonym[RearWheels]{
	{"Single Rear Wheel", RearSRW},
	{"Single Rear Wheels", RearSRW},
	{"Dual Rear Wheel", RearDRW},
	{"Dual Rear Wheels", RearDRW},
	{"Dually", RearDRW},
	{"Single", RearSRW},
	{"Dual", RearDRW},
}

var confidenceSynonyms = []synonym[Confidence]{
	{"High", ConfidenceHigh},
	{"Medium", ConfidenceMedium},
	{"Low", ConfidenceLow},
}

// NormalizeDriveType maps raw onto a DriveType.
func NormalizeDriveType(raw string) (DriveType, bool) {
	return normalize(raw, driveSynonyms, driveTypes)
}

// NormalizeFuelType maps raw onto a FuelType.
func NormalizeFuelType(raw string) (FuelType, bool) {
	return normalize(raw, fuelSynonyms, fuelTypes)
}

// NormalizeRearWheels maps raw onto a RearWheels configuration.
func NormalizeRearWheels(raw string) (RearWheels, bool) {
	return normalize(raw, rearSynonyms, rearWheels)
}

// NormalizeConfidence maps raw onto a Confidence grade.
func NormalizeConfidence(raw string) (Confidence, bool) {
	return normalize(raw, confidenceSynonyms, confidences)
}

// normalize tries an exact synonym match, then a case-insensitive match
// against the member codes. Anything else is unmapped.
func normalize[T ~string](raw string, synonyms []synonym[T], members []T) (T, bool) {
	var zero T
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zero, false
	}
	for _, s := range synonyms {
		if s.raw == raw {
			return s.value, true
		}
	}
	for _, m := range members {
		if strings.EqualFold(string(m), raw) {
			return m, true
		}
	}
	return zero, false
}
