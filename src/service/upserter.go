package service

import (
	"context"
	"fmt"
	"time"

	"orderstate/src/apperr"
	"orderstate/src/model"
	"orderstate/src/repository"

	logger "github.com/sirupsen/logrus"
)

// OrderUpserter applies the desired state of one symbol's order.
type OrderUpserter struct {
	orders *repository.OrderRepository
	levels *repository.TakeProfitRepository
	now    func() time.Time
}

func NewOrderUpserter(orders *repository.OrderRepository, levels *repository.TakeProfitRepository, now func() time.Time) *OrderUpserter {
	if now == nil {
		now = time.Now
	}
	return &OrderUpserter{orders: orders, levels: levels, now: now}
}

// Upsert creates, merges or removes the order of symbol.
//
// An "exit" action deletes the order (no-op when absent) and clears the hit flag of
// the symbol's take-profit levels, which are kept. Otherwise an existing order gets
// every sent field overwritten and every absent field kept; a new order requires
// quantity and entry_price (or limitPrice).
func (u *OrderUpserter) Upsert(ctx context.Context, symbol string, fields model.OrderFields) error {
	log := logger.WithFields(map[string]interface{}{
		"component": "OrderUpserter",
		"symbol":    symbol,
	})

	if fields.IsExit() {
		removed, err := u.orders.DeleteBySymbol(ctx, symbol)
		if err != nil {
			return apperr.Persistence("delete order", err)
		}
		reset, err := u.levels.ResetHit(ctx, symbol)
		if err != nil {
			return apperr.Persistence("reset take profit hit state", err)
		}
		log.WithFields(map[string]interface{}{
			"removed":  removed,
			"tp_reset": reset,
		}).Debug("Exit processed")
		return nil
	}

	existing, err := u.orders.FindBySymbol(ctx, symbol)
	if err != nil {
		return apperr.Persistence("find order", err)
	}

	if existing != nil {
		if err := mergeOrder(existing, fields); err != nil {
			return fmt.Errorf("order %s: %w", symbol, err)
		}
		if err := u.orders.Save(ctx, existing); err != nil {
			return apperr.Persistence("update order", err)
		}
		log.Debug("Updated existing order")
		return nil
	}

	order, err := newOrder(symbol, fields, u.now())
	if err != nil {
		return fmt.Errorf("order %s: %w", symbol, err)
	}
	if err := u.orders.Create(ctx, order); err != nil {
		return apperr.Persistence("create order", err)
	}
	log.Debug("Created new order")
	return nil
}

// mergeOrder overwrites the mutable columns present in fields. The alternate
// spellings (limitPrice, stopLoss) only apply when creating an order.
func mergeOrder(order *model.Order, fields model.OrderFields) error {
	if fields.Action.Set {
		if fields.Action.Null {
			return apperr.Validation("action", "must not be null")
		}
		order.Action = fields.Action.Value
	}
	if fields.Quantity.Set {
		if fields.Quantity.Null {
			return apperr.Validation("quantity", "must not be null")
		}
		order.Quantity = fields.Quantity.Value
	}
	if fields.EntryPrice.Set {
		if fields.EntryPrice.Null {
			return apperr.Validation("entry_price", "must not be null")
		}
		order.EntryPrice = fields.EntryPrice.Value
	}
	if fields.Timestamp.Set {
		if fields.Timestamp.Null {
			return apperr.Validation("timestamp", "must not be null")
		}
		order.Timestamp = fields.Timestamp.Value
	}
	if fields.StopLoss.Set {
		// null clears the stop loss
		order.StopLoss = fields.StopLoss.Value
	}
	return nil
}

func newOrder(symbol string, fields model.OrderFields, now time.Time) (*model.Order, error) {
	if fields.Action.Set && fields.Action.Null {
		return nil, apperr.Validation("action", "must not be null")
	}
	if !fields.Quantity.Present() {
		return nil, apperr.Validation("quantity", "is required")
	}

	var entryPrice float64
	switch {
	case fields.EntryPrice.Present():
		entryPrice = fields.EntryPrice.Value
	case fields.LimitPrice.Present():
		entryPrice = fields.LimitPrice.Value
	default:
		return nil, apperr.Validation("entry_price", "is required (or limitPrice)")
	}

	stopLoss := fields.StopLoss.Value
	if !fields.StopLoss.Present() {
		stopLoss = fields.StopLossAlt.Or(nil)
	}

	return &model.Order{
		Symbol:     symbol,
		Action:     fields.Action.Value,
		Quantity:   fields.Quantity.Value,
		EntryPrice: entryPrice,
		Timestamp:  fields.Timestamp.Or(now.Unix()),
		StopLoss:   stopLoss,
	}, nil
}
