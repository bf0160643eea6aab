package domain

import (
	"encoding/json"
	"math"
)

// Metric is a numeric field that may be absent. Absent is not zero: pillar
// and guardrail code must branch on Valid before reading Value.
type Metric struct {
	Value float64
	Valid bool
}

// M wraps a known value.
func M(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{Value: v, Valid: true}
}

// Missing returns the absent marker.
func Missing() Metric { return Metric{} }

// Or returns the value when present, def otherwise.
func (m Metric) Or(def float64) float64 {
	if m.Valid {
		return m.Value
	}
	return def
}

// MarshalJSON renders absent metrics as null so persisted breakdowns keep
// the missing/zero distinction.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts null as absent.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = M(v)
	return nil
}
