// Package enum holds the closed vehicle enumerations used by listing forms
// and maps free-text provider values onto them.
package enum

// DriveType is the drivetrain layout of a vehicle.
type DriveType string

const (
	DriveRWD DriveType = "RWD"
	DriveAWD DriveType = "AWD"
	Drive4WD DriveType = "4WD"
	DriveFWD DriveType = "FWD"
)

// IsValid reports whether d is a member of the enumeration.
func (d DriveType) IsValid() bool {
	switch d {
	case DriveRWD, DriveAWD, Drive4WD, DriveFWD:
		return true
	default:
		return false
	}
}

// FuelType is the primary fuel of a vehicle.
type FuelType string

const (
	FuelGasoline FuelType = "gasoline"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
	FuelHybrid   FuelType = "hybrid"
	FuelCNG      FuelType = "cng"
	FuelPropane  FuelType = "propane"
)

// IsValid reports whether f is a member of the enumeration.
func (f FuelType) IsValid() bool {
	switch f {
	case FuelGasoline, FuelDiesel, FuelElectric, FuelHybrid, FuelCNG, FuelPropane:
		return true
	default:
		return false
	}
}

// RearWheels is the rear axle wheel configuration.
type RearWheels string

const (
	RearSRW RearWheels = "SRW"
	RearDRW RearWheels = "DRW"
)

// IsValid reports whether r is a member of the enumeration.
func (r RearWheels) IsValid() bool {
	return r == RearSRW || r == RearDRW
}

// Confidence grades how cleanly a VIN decoded.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid reports whether c is a member of the enumeration.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

var (
	driveTypes  = []DriveType{DriveRWD, DriveAWD, Drive4WD, DriveFWD}
	fuelTypes   = []FuelType{FuelGasoline, FuelDiesel, FuelElectric, FuelHybrid, FuelCNG, FuelPropane}
	rearWheels  = []RearWheels{RearSRW, RearDRW}
	confidences = []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}
)

// DriveTypes returns the drive type members in display order.
func DriveTypes() []DriveType { return append([]DriveType(nil), driveTypes...) }

// FuelTypes returns the fuel type members in display order.
func FuelTypes() []FuelType { return append([]FuelType(nil), fuelTypes...) }

// RearWheelConfigs returns the rear wheel members in display order.
func RearWheelConfigs() []RearWheels { return append([]RearWheels(nil), rearWheels...) }
