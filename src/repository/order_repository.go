package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderstate/src/model"
)

// OrderRepository handles read/write operations for the per-symbol orders.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a repository bound to db.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Used to bind the repository to the request transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindBySymbol returns the active order of symbol.
// Returns (nil, nil) if the symbol has no order.
func (r *OrderRepository) FindBySymbol(
	ctx context.Context,
	symbol string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "FindBySymbol",
		"symbol": symbol,
	}).Debug("Fetching order by symbol")

	var order model.Order
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch order by symbol")

		return nil, err
	}

	return &order, nil
}

// FindAll returns every active order ordered by symbol.
func (r *OrderRepository) FindAll(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Order("symbol ASC").
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindAll",
		}).WithError(err).Error("Failed to list orders")

		return nil, err
	}

	return orders, nil
}

// Create inserts a new order.
// The given order will be updated with the generated ID and timestamps.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "Create",
		"symbol": order.Symbol,
		"action": order.Action,
		"qty":    order.Quantity,
	}).Debug("Creating new order")

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRepository",
			"op":     "Create",
			"symbol": order.Symbol,
		}).WithError(err).Error("Failed to create order")

		return err
	}

	return nil
}

// Save writes every column of an existing order.
func (r *OrderRepository) Save(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "Save",
		"symbol": order.Symbol,
		"id":     order.ID,
	}).Debug("Updating order")

	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRepository",
			"op":     "Save",
			"symbol": order.Symbol,
		}).WithError(err).Error("Failed to update order")

		return err
	}

	return nil
}

// DeleteBySymbol removes the order of symbol and returns the number of rows deleted.
func (r *OrderRepository) DeleteBySymbol(
	ctx context.Context,
	symbol string,
) (int64, error) {

	res := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Delete(&model.Order{})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRepository",
			"op":     "DeleteBySymbol",
			"symbol": symbol,
		}).WithError(res.Error).Error("Failed to delete order")

		return 0, res.Error
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "OrderRepository",
		"op":      "DeleteBySymbol",
		"symbol":  symbol,
		"removed": res.RowsAffected,
	}).Debug("Removed orders for symbol")

	return res.RowsAffected, nil
}
