package form

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetmarket/vinfill/internal/enum"
)

func TestAssign_NotDirty(t *testing.T) {
	tbl := New()
	tbl.Assign("make", Text("Ford"))

	v, ok := tbl.Get("make")
	require.True(t, ok)
	assert.Equal(t, "Ford", v.Text)
	assert.False(t, tbl.Dirty("make"))
}

func TestSet_MarksDirty(t *testing.T) {
	tbl := New()
	tbl.Set("make", Text("Ram"))
	assert.True(t, tbl.Dirty("make"))

	// A later decode supersedes the manual value.
	tbl.Assign("make", Text("Ford"))
	assert.False(t, tbl.Dirty("make"))
}

func TestClear(t *testing.T) {
	tbl := New()
	var origins []Origin
	tbl.OnChange(func(_ string, _ Value, o Origin) { origins = append(origins, o) })

	tbl.Set("year", Number(2024))
	tbl.Clear("year")
	tbl.Clear("year") // no-op, no notification

	assert.False(t, tbl.Has("year"))
	assert.False(t, tbl.Dirty("year"))
	assert.Equal(t, []Origin{OriginUser, OriginClear}, origins)
}

func TestOnChange_ReceivesWrites(t *testing.T) {
	tbl := New()
	var seen []string
	tbl.OnChange(func(field string, v Value, o Origin) {
		if o == OriginDecode {
			seen = append(seen, field+"="+v.String())
		}
	})

	tbl.Assign("gawrFront", Number(7260))
	tbl.Assign("tpms", Flag(true))
	tbl.Set("make", Text("Ford"))

	assert.Equal(t, []string{"gawrFront=7260", "tpms=true"}, seen)
}

func TestFieldsAndSnapshot(t *testing.T) {
	tbl := New()
	tbl.Assign("year", Number(2024))
	tbl.Assign("driveType", Enum(enum.Drive4WD))

	assert.Equal(t, []string{"driveType", "year"}, tbl.Fields())

	snap := tbl.Snapshot()
	snap["year"] = Number(1999)
	v, _ := tbl.Get("year")
	assert.Equal(t, 2024.0, v.Num, "snapshot must be a copy")
}

func TestValue_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Value{
		"year":      Number(2024),
		"make":      Text("Ford"),
		"tpms":      Flag(true),
		"driveType": Enum(enum.Drive4WD),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"year":2024,"make":"Ford","tpms":true,"driveType":"4WD"}`, string(data))
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var got map[string]Value
	require.NoError(t, json.Unmarshal([]byte(`{"year":2024,"make":"Ford","tpms":true}`), &got))
	assert.Equal(t, map[string]Value{
		"year": Number(2024),
		"make": Text("Ford"),
		"tpms": Flag(true),
	}, got)

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &v))
}
