package migrations

import (
	"fmt"
	"time"

	"orderstate/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// legacyOrder is a row of the "order" table written by the previous service.
// Symbol was not unique there.
type legacyOrder struct {
	ID         int64
	Symbol     string
	Action     string
	Quantity   int64
	EntryPrice float64
	Timestamp  int64
	StopLoss   any `gorm:"serializer:json"`
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}

func (legacyOrder) TableName() string { return "order" }

// legacyTakeProfit is a row of the previous "take_profit" table. enabled and hit
// were nullable with column defaults.
type legacyTakeProfit struct {
	ID       int64
	Symbol   string
	Enabled  *bool
	Quantity int64
	Target   float64
	Price    float64
	Hit      *bool
}

func (legacyTakeProfit) TableName() string { return "take_profit" }

// importLegacyOrders copies the newest legacy row per symbol into orders. Symbols
// already present in orders are left alone.
func importLegacyOrders(tx *gorm.DB) error {
	if !tx.Migrator().HasTable(legacyOrder{}.TableName()) {
		return nil
	}

	var rows []legacyOrder
	if err := tx.Order("id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("read legacy orders: %w", err)
	}

	newest := map[string]legacyOrder{}
	var symbols []string
	for _, r := range rows {
		if _, ok := newest[r.Symbol]; !ok {
			symbols = append(symbols, r.Symbol)
		}
		newest[r.Symbol] = r
	}

	imported := 0
	for _, symbol := range symbols {
		var count int64
		if err := tx.Model(&model.Order{}).Where("symbol = ?", symbol).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		r := newest[symbol]
		order := model.Order{
			Symbol:     r.Symbol,
			Action:     r.Action,
			Quantity:   r.Quantity,
			EntryPrice: r.EntryPrice,
			Timestamp:  r.Timestamp,
			StopLoss:   r.StopLoss,
		}
		if r.CreatedAt != nil {
			order.CreatedAt = *r.CreatedAt
		}
		if r.UpdatedAt != nil {
			order.UpdatedAt = *r.UpdatedAt
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("import order %s: %w", symbol, err)
		}
		imported++
	}

	logrus.WithFields(map[string]interface{}{
		"legacy_rows": len(rows),
		"imported":    imported,
	}).Info("[migrations] legacy orders imported")
	return nil
}

// importLegacyTakeProfits copies legacy levels, collapsing rows that share
// (symbol, target, quantity) onto the oldest one as reconciliation would. Symbols
// that already have levels are left alone.
func importLegacyTakeProfits(tx *gorm.DB) error {
	if !tx.Migrator().HasTable(legacyTakeProfit{}.TableName()) {
		return nil
	}

	var rows []legacyTakeProfit
	if err := tx.Order("id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("read legacy take profit levels: %w", err)
	}

	type legacyKey struct {
		symbol string
		key    model.TPKey
	}
	seen := map[legacyKey]bool{}
	existing := map[string]bool{}

	imported := 0
	for _, r := range rows {
		k := legacyKey{symbol: r.Symbol, key: model.TPKey{Target: r.Target, Quantity: r.Quantity}}
		if seen[k] {
			continue
		}
		seen[k] = true

		has, ok := existing[r.Symbol]
		if !ok {
			var count int64
			if err := tx.Model(&model.TakeProfit{}).Where("symbol = ?", r.Symbol).Count(&count).Error; err != nil {
				return err
			}
			has = count > 0
			existing[r.Symbol] = has
		}
		if has {
			continue
		}

		tp := model.TakeProfit{
			Symbol:   r.Symbol,
			Enabled:  r.Enabled == nil || *r.Enabled,
			Quantity: r.Quantity,
			Target:   r.Target,
			Price:    r.Price,
			Hit:      r.Hit != nil && *r.Hit,
		}
		if err := tx.Create(&tp).Error; err != nil {
			return fmt.Errorf("import take profit level for %s: %w", r.Symbol, err)
		}
		imported++
	}

	logrus.WithFields(map[string]interface{}{
		"legacy_rows": len(rows),
		"imported":    imported,
	}).Info("[migrations] legacy take profit levels imported")
	return nil
}
