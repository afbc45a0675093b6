package model

import (
	"encoding/json"
	"math"
)

// Optional distinguishes a JSON key that was absent from one that was sent,
// and a sent null from a sent value.
//
//	{}              -> Set=false
//	{"k": null}     -> Set=true, Null=true
//	{"k": 7}        -> Set=true, Value=7
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		var zero T
		o.Value = zero
		o.Null = true
		return nil
	}
	o.Null = false
	err := json.Unmarshal(b, &o.Value)
	if err == nil {
		return nil
	}
	if p, ok := any(&o.Value).(*int64); ok {
		return unmarshalIntegral(b, p, err)
	}
	return err
}

// unmarshalIntegral accepts whole numbers written as floats (1.0, 3e2), which some
// alert templates emit for counts. Anything else keeps the original error.
func unmarshalIntegral(b []byte, dst *int64, orig error) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return orig
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return orig
	}
	*dst = int64(f)
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Present reports whether the key was sent with a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// Or returns the value when present, fallback otherwise.
func (o Optional[T]) Or(fallback T) T {
	if o.Present() {
		return o.Value
	}
	return fallback
}
