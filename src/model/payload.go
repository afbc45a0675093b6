package model

import (
	"encoding/json"

	"orderstate/src/apperr"
)

// OrderFields is the desired state of one order as sent by the signal source.
// Only keys present in the payload are merged into an existing order.
type OrderFields struct {
	Action     Optional[string]  `json:"action"`
	Quantity   Optional[int64]   `json:"quantity"`
	EntryPrice Optional[float64] `json:"entry_price"`
	LimitPrice Optional[float64] `json:"limitPrice"`
	Timestamp  Optional[int64]   `json:"timestamp"`
	StopLoss   Optional[any]     `json:"stop_loss"`
	// StopLossAlt is the camelCase spelling some alert templates use.
	StopLossAlt Optional[any] `json:"stopLoss"`
}

// IsExit reports whether the fields request removal of the order.
func (f OrderFields) IsExit() bool {
	return f.Action.Present() && f.Action.Value == ActionExit
}

func (f OrderFields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.fields())
}

func (f OrderFields) fields() map[string]any {
	out := map[string]any{}
	putOptional(out, "action", f.Action)
	putOptional(out, "quantity", f.Quantity)
	putOptional(out, "entry_price", f.EntryPrice)
	putOptional(out, "limitPrice", f.LimitPrice)
	putOptional(out, "timestamp", f.Timestamp)
	putOptional(out, "stop_loss", f.StopLoss)
	putOptional(out, "stopLoss", f.StopLossAlt)
	return out
}

// TPLevelInput is a take-profit entry on the wire. Full reconciliation requires every
// field (see Level); index-addressed updates merge only the present ones (see ApplyTo).
type TPLevelInput struct {
	Enabled  Optional[bool]    `json:"enabled"`
	Quantity Optional[int64]   `json:"quantity"`
	Target   Optional[float64] `json:"target"`
	Price    Optional[float64] `json:"price"`
	Hit      Optional[bool]    `json:"hit"`
}

// NewTPLevelInput builds a fully populated input, mostly for clients and tests.
func NewTPLevelInput(l TPLevel) TPLevelInput {
	return TPLevelInput{
		Enabled:  Some(l.Enabled),
		Quantity: Some(l.Quantity),
		Target:   Some(l.Target),
		Price:    Some(l.Price),
		Hit:      Some(l.Hit),
	}
}

// Level validates that every field is present and returns the desired level.
func (in TPLevelInput) Level() (TPLevel, error) {
	switch {
	case !in.Target.Present():
		return TPLevel{}, apperr.Validation("target", "is required")
	case !in.Quantity.Present():
		return TPLevel{}, apperr.Validation("quantity", "is required")
	case !in.Enabled.Present():
		return TPLevel{}, apperr.Validation("enabled", "is required")
	case !in.Price.Present():
		return TPLevel{}, apperr.Validation("price", "is required")
	case !in.Hit.Present():
		return TPLevel{}, apperr.Validation("hit", "is required")
	}
	return TPLevel{
		Enabled:  in.Enabled.Value,
		Quantity: in.Quantity.Value,
		Target:   in.Target.Value,
		Price:    in.Price.Value,
		Hit:      in.Hit.Value,
	}, nil
}

// Validate checks a partial update without applying it. Absent keys keep the stored
// value; an explicit null is rejected since every column is NOT NULL.
func (in TPLevelInput) Validate() error {
	switch {
	case in.Enabled.Null:
		return apperr.Validation("enabled", "must not be null")
	case in.Quantity.Null:
		return apperr.Validation("quantity", "must not be null")
	case in.Target.Null:
		return apperr.Validation("target", "must not be null")
	case in.Price.Null:
		return apperr.Validation("price", "must not be null")
	case in.Hit.Null:
		return apperr.Validation("hit", "must not be null")
	}
	return nil
}

// ApplyTo merges the present fields into tp, field by field.
func (in TPLevelInput) ApplyTo(tp *TakeProfit) {
	tp.Enabled = in.Enabled.Or(tp.Enabled)
	tp.Quantity = in.Quantity.Or(tp.Quantity)
	tp.Target = in.Target.Or(tp.Target)
	tp.Price = in.Price.Or(tp.Price)
	tp.Hit = in.Hit.Or(tp.Hit)
}

func (in TPLevelInput) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	putOptional(out, "enabled", in.Enabled)
	putOptional(out, "quantity", in.Quantity)
	putOptional(out, "target", in.Target)
	putOptional(out, "price", in.Price)
	putOptional(out, "hit", in.Hit)
	return json.Marshal(out)
}

// UpdatePayload accepts both shapes of the update endpoint:
//
//	bulk:   {"active_orders": {"AAPL": {...}}, "tp_levels": {"AAPL": [...]}}
//	single: {"ticker": "AAPL1!", "action": "buy", "quantity": 3, ...}
//
// A single-shape payload may also carry tp_levels.
type UpdatePayload struct {
	ActiveOrders map[string]OrderFields    `json:"active_orders"`
	TPLevels     map[string][]TPLevelInput `json:"tp_levels"`
	Ticker       Optional[string]          `json:"ticker"`
	OrderFields
}

// IsBulk reports whether the payload uses the multi-symbol shape: active_orders is
// present, or tp_levels is sent without a ticker.
func (p UpdatePayload) IsBulk() bool {
	return p.ActiveOrders != nil || (p.TPLevels != nil && !p.Ticker.Set)
}

// HasOrderFields reports whether any top-level order field was sent.
func (p UpdatePayload) HasOrderFields() bool {
	return len(p.OrderFields.fields()) > 0
}

func (p UpdatePayload) MarshalJSON() ([]byte, error) {
	out := p.OrderFields.fields()
	putOptional(out, "ticker", p.Ticker)
	if p.ActiveOrders != nil {
		out["active_orders"] = p.ActiveOrders
	}
	if p.TPLevels != nil {
		out["tp_levels"] = p.TPLevels
	}
	return json.Marshal(out)
}

// SaveTPLevelsPayload replaces every level of one symbol. A missing tp_levels key
// is an empty list and clears the symbol.
type SaveTPLevelsPayload struct {
	TPLevels []TPLevelInput `json:"tp_levels"`
}

func putOptional[T any](out map[string]any, key string, o Optional[T]) {
	if !o.Set {
		return
	}
	if o.Null {
		out[key] = nil
		return
	}
	out[key] = o.Value
}
