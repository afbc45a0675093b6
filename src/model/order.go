package model

import (
	"strings"
	"time"
)

const (
	// ActionExit is a sentinel, not a persisted action: it removes the symbol's order.
	ActionExit = "exit"

	continuousSuffix = "1!"
)

// Order is the single active order tracked per symbol.
type Order struct {
	ID         uint    `gorm:"primaryKey" json:"-"`
	Symbol     string  `gorm:"size:32;not null;uniqueIndex" json:"symbol"`
	Action     string  `gorm:"size:16;not null" json:"action"`
	Quantity   int64   `gorm:"not null" json:"quantity"`
	EntryPrice float64 `gorm:"not null" json:"entry_price"`
	Timestamp  int64   `gorm:"not null" json:"timestamp"`
	// StopLoss is an opaque payload kept as sent by the signal source.
	StopLoss  any       `gorm:"serializer:json;type:jsonb" json:"stop_loss"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// OrderDict is the wire representation of an order.
type OrderDict struct {
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Quantity   int64   `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	Timestamp  int64   `json:"timestamp"`
	StopLoss   any     `json:"stop_loss"`
}

func (o Order) ToDict() OrderDict {
	return OrderDict{
		Symbol:     o.Symbol,
		Action:     o.Action,
		Quantity:   o.Quantity,
		EntryPrice: o.EntryPrice,
		Timestamp:  o.Timestamp,
		StopLoss:   o.StopLoss,
	}
}

// NormalizeTicker strips the continuous-contract suffix "1!" from a charting ticker.
// Examples:
//
//	AAPL1! -> AAPL
//	ES1!   -> ES
//	NQ     -> NQ
func NormalizeTicker(ticker string) string {
	return strings.TrimSuffix(strings.TrimSpace(ticker), continuousSuffix)
}
