package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDriveType_Synonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want DriveType
	}{
		{"Rear Wheel Drive", DriveRWD},
		{"4-Wheel Drive", Drive4WD},
		{"All-Wheel Drive", DriveAWD},
		{"Front-Wheel Drive", DriveFWD},
		{"4WD/4-Wheel Drive/4x4", Drive4WD},
		{"RWD/Rear-Wheel Drive", DriveRWD},
		{"4x2", DriveRWD},
		{"  4x4  ", Drive4WD},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeDriveType(tt.raw)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDriveType_MemberCodesCaseInsensitive(t *testing.T) {
	for raw, want := range map[string]DriveType{
		"rwd": DriveRWD,
		"Awd": DriveAWD,
		"4wd": Drive4WD,
		"FWD": DriveFWD,
	} {
		got, ok := NormalizeDriveType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormalizeDriveType_Unmapped(t *testing.T) {
	for _, raw := range []string{"", "   ", "rear wheel drive", "Rear", "2WD", "4-wheel-drive"} {
		got, ok := NormalizeDriveType(raw)
		assert.False(t, ok, raw)
		assert.Empty(t, got, raw)
	}
}

func TestNormalizeFuelType(t *testing.T) {
	tests := []struct {
		raw  string
		want FuelType
		ok   bool
	}{
		{"Gasoline", FuelGasoline, true},
		{"DIESEL", FuelDiesel, true},
		{"Compressed Natural Gas (CNG)", FuelCNG, true},
		{"Liquefied Petroleum Gas (propane or LPG)", FuelPropane, true},
		{"Electricity", FuelElectric, true},
		{"hybrid", FuelHybrid, true},
		{"Flexible Fuel Vehicle (FFV)", FuelGasoline, true},
		{"Hydrogen", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeFuelType(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNormalizeRearWheels(t *testing.T) {
	got, ok := NormalizeRearWheels("Dual Rear Wheel")
	assert.True(t, ok)
	assert.Equal(t, RearDRW, got)

	got, ok = NormalizeRearWheels("srw")
	assert.True(t, ok)
	assert.Equal(t, RearSRW, got)

	_, ok = NormalizeRearWheels("triple")
	assert.False(t, ok)
}

func TestNormalizeConfidence(t *testing.T) {
	got, ok := NormalizeConfidence("MEDIUM")
	assert.True(t, ok)
	assert.Equal(t, ConfidenceMedium, got)

	_, ok = NormalizeConfidence("certain")
	assert.False(t, ok)
}

func TestSynonymTables_OnlyValidMembers(t *testing.T) {
	for _, s := range driveSynonyms {
		assert.True(t, s.value.IsValid(), s.raw)
	}
	for _, s := range fuelSynonyms {
		assert.True(t, s.value.IsValid(), s.raw)
	}
	for _, s := range rearSynonyms {
		assert.True(t, s.value.IsValid(), s.raw)
	}
	for _, s := range confidenceSynonyms {
		assert.True(t, s.value.IsValid(), s.raw)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, Drive4WD.IsValid())
	assert.False(t, DriveType("2WD").IsValid())
	assert.True(t, FuelPropane.IsValid())
	assert.False(t, FuelType("Gasoline").IsValid())
	assert.True(t, RearDRW.IsValid())
	assert.False(t, RearWheels("").IsValid())
	assert.True(t, ConfidenceLow.IsValid())
	assert.False(t, Confidence("none").IsValid())
}
