package reconcile

import (
	"github.com/fleetmarket/vinfill/internal/derive"
	"github.com/fleetmarket/vinfill/internal/enum"
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/payload"
)

// fieldKind selects how a raw value is converted for a field.
type fieldKind int

const (
	kindText fieldKind = iota
	kindInt
	kindMeasure // non-negative number
	kindFlag
	kindDrive
	kindFuel
	kindRearWheels
	kindRoofHeight // derived from overall height
)

// FieldSpec binds a logical form field to the raw payload keys that can
// populate it, in precedence order.
type FieldSpec struct {
	Name string
	Keys []string
	kind fieldKind
}

// Logical field names written by decode.
const (
	FieldYear              = "year"
	FieldMake              = "make"
	FieldModel             = "model"
	FieldSeries            = "series"
	FieldBodyStyle         = "bodyStyle"
	FieldFuelType          = "fuelType"
	FieldWheelbase         = "wheelbase"
	FieldGVWR              = "gvwr"
	FieldPayloadCapacity   = "payloadCapacity"
	FieldEngineDescription = "engineDescription"
	FieldTransmission      = "transmission"
	FieldDriveType         = "driveType"
	FieldHeightType        = "heightType"
	FieldAxleDescription   = "axleDescription"
	FieldRearWheels        = "rearWheels"
	FieldBatteryVoltage    = "batteryVoltage"
	FieldHorsepower        = "horsepower"
	FieldMPGCity           = "mpgCity"
	FieldMPGHighway        = "mpgHighway"
	FieldMPGe              = "mpge"
	FieldExteriorLength    = "exteriorLength"
	FieldExteriorWidth     = "exteriorWidth"
	FieldCurbWeight        = "curbWeight"
	FieldSeatingCapacity   = "seatingCapacity"
	FieldGAWRFront         = "gawrFront"
	FieldGAWRRear          = "gawrRear"
	FieldTowingCapacity    = "towingCapacity"
	FieldFuelTankCapacity  = "fuelTankCapacity"
	FieldBackupCamera      = "backupCamera"
	FieldBluetooth         = "bluetooth"
	FieldTPMS              = "tpms"
)

// decodeFields is the fixed, ordered list reconciliation walks. The
// overall height is never stored itself; it only feeds heightType.
var decodeFields = []FieldSpec{
	{FieldYear, []string{"year"}, kindInt},
	{FieldMake, []string{"make"}, kindText},
	{FieldModel, []string{"model"}, kindText},
	{FieldSeries, []string{"series", "trim"}, kindText},
	{FieldBodyStyle, []string{"bodyStyle", "bodyClass"}, kindText},
	{FieldFuelType, []string{"fuelTypePrimary"}, kindFuel},
	{FieldWheelbase, []string{"wheelbase"}, kindMeasure},
	{FieldGVWR, []string{"gvwr"}, kindMeasure},
	{FieldPayloadCapacity, []string{"payloadCapacity"}, kindMeasure},
	{FieldEngineDescription, []string{"engineDescription", "engineModel"}, kindText},
	{FieldTransmission, []string{"transmission"}, kindText},
	{FieldDriveType, []string{"driveType"}, kindDrive},
	{FieldHeightType, []string{"overallHeight"}, kindRoofHeight},
	{FieldAxleDescription, []string{"axleDescription"}, kindText},
	{FieldRearWheels, []string{"rearWheels"}, kindRearWheels},
	{FieldBatteryVoltage, []string{"batteryVoltage"}, kindMeasure},
	{FieldHorsepower, []string{"horsepower"}, kindMeasure},
	{FieldMPGCity, []string{"mpgCity"}, kindMeasure},
	{FieldMPGHighway, []string{"mpgHighway"}, kindMeasure},
	{FieldMPGe, []string{"mpge"}, kindMeasure},
	{FieldExteriorLength, []string{"overallLength"}, kindMeasure},
	{FieldExteriorWidth, []string{"overallWidth"}, kindMeasure},
	{FieldCurbWeight, []string{"curbWeight"}, kindMeasure},
	{FieldSeatingCapacity, []string{"seatingCapacity"}, kindInt},
	{FieldGAWRFront, []string{"gawrFront"}, kindMeasure},
	{FieldGAWRRear, []string{"gawrRear"}, kindMeasure},
	{FieldTowingCapacity, []string{"towingCapacity"}, kindMeasure},
	{FieldFuelTankCapacity, []string{"fuelTankCapacity"}, kindMeasure},
	{FieldBackupCamera, []string{"backupCamera"}, kindFlag},
	{FieldBluetooth, []string{"bluetoothCapable"}, kindFlag},
	{FieldTPMS, []string{"tpms"}, kindFlag},
}

// manualFields are listing fields only a dealer fills in.
var manualFields = []FieldSpec{
	{"price", []string{"price"}, kindMeasure},
	{"mileage", []string{"mileage"}, kindMeasure},
	{"stockNumber", []string{"stockNumber"}, kindText},
	{"condition", []string{"condition"}, kindText},
	{"exteriorColor", []string{"exteriorColor"}, kindText},
	{"description", []string{"description"}, kindText},
}

var specsByName = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(decodeFields)+len(manualFields))
	for _, f := range decodeFields {
		m[f.Name] = f
	}
	for _, f := range manualFields {
		m[f.Name] = f
	}
	return m
}()

// DecodeFields returns the reconciled fields in walk order.
func DecodeFields() []FieldSpec {
	return append([]FieldSpec(nil), decodeFields...)
}

// Spec returns the field spec for a logical name.
func Spec(name string) (FieldSpec, bool) {
	f, ok := specsByName[name]
	return f, ok
}

// Skip reasons.
const (
	ReasonWrongType  = "wrong_type"
	ReasonUnmapped   = "unmapped"
	ReasonOutOfRange = "out_of_range"
)

// convert turns a present raw value into a form value for spec. It returns
// a skip reason when the value cannot be used.
func convert(spec FieldSpec, v payload.Value) (form.Value, string) {
	switch spec.kind {
	case kindText:
		s, out := v.Text()
		if out != payload.OK {
			return form.Value{}, ReasonWrongType
		}
		return form.Text(s), ""

	case kindInt:
		n, out := v.Int()
		if out != payload.OK {
			return form.Value{}, ReasonWrongType
		}
		if n < 0 {
			return form.Value{}, ReasonOutOfRange
		}
		return form.Number(float64(n)), ""

	case kindMeasure:
		n, out := v.Number()
		if out != payload.OK {
			return form.Value{}, ReasonWrongType
		}
		if n < 0 {
			return form.Value{}, ReasonOutOfRange
		}
		return form.Number(n), ""

	case kindFlag:
		b, out := v.Bool()
		if out != payload.OK {
			return form.Value{}, ReasonWrongType
		}
		return form.Flag(b), ""

	case kindDrive:
		return convertEnum(v, enum.NormalizeDriveType)

	case kindFuel:
		return convertEnum(v, enum.NormalizeFuelType)

	case kindRearWheels:
		return convertEnum(v, enum.NormalizeRearWheels)

	case kindRoofHeight:
		h, out := v.Number()
		if out != payload.OK {
			return form.Value{}, ReasonWrongType
		}
		cat, ok := derive.RoofHeightFor(h)
		if !ok {
			return form.Value{}, ReasonOutOfRange
		}
		return form.Enum(cat), ""
	}
	return form.Value{}, ReasonWrongType
}

func convertEnum[T ~string](v payload.Value, normalize func(string) (T, bool)) (form.Value, string) {
	s, out := v.Text()
	if out != payload.OK {
		return form.Value{}, ReasonWrongType
	}
	member, ok := normalize(s)
	if !ok {
		return form.Value{}, ReasonUnmapped
	}
	return form.Enum(member), ""
}
