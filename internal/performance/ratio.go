package performance

import (
	"encoding/json"
	"math"
	"strconv"
)

// Ratio is a float that may be +Inf. JSON has no infinity literal, so the
// sentinel is rendered as the string "Infinity".
type Ratio float64

// Inf is the profit factor of a run with winners and no losers.
var Inf = Ratio(math.Inf(1))

// IsInf reports whether r is the +Inf sentinel.
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsNaN(f) || math.IsInf(f, -1):
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"Infinity"`:
		*r = Inf
		return nil
	case "null":
		*r = Ratio(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

func (r Ratio) String() string {
	if r.IsInf() {
		return "Infinity"
	}
	return strconv.FormatFloat(float64(r), 'f', 2, 64)
}
