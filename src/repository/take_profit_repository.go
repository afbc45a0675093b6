package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderstate/src/model"
)

// TakeProfitRepository handles read/write operations for take-profit levels.
// Levels of a symbol are always returned in insertion order (id ASC); positional
// addressing relies on it.
type TakeProfitRepository struct {
	db *gorm.DB
}

func NewTakeProfitRepository(db *gorm.DB) *TakeProfitRepository {
	return &TakeProfitRepository{db: db}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TakeProfitRepository) WithDB(db *gorm.DB) *TakeProfitRepository {
	return &TakeProfitRepository{db: db}
}

// FindBySymbol returns the levels of symbol in retrieval order.
func (r *TakeProfitRepository) FindBySymbol(
	ctx context.Context,
	symbol string,
) ([]model.TakeProfit, error) {

	var levels []model.TakeProfit
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("id ASC").
		Find(&levels).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TakeProfitRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch take profit levels")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "TakeProfitRepository",
		"op":     "FindBySymbol",
		"symbol": symbol,
		"count":  len(levels),
	}).Debug("Fetched take profit levels")

	return levels, nil
}

// FindAll returns every level grouped by symbol, each group in retrieval order.
func (r *TakeProfitRepository) FindAll(ctx context.Context) ([]model.TakeProfit, error) {
	var levels []model.TakeProfit
	err := r.db.WithContext(ctx).
		Order("symbol ASC").
		Order("id ASC").
		Find(&levels).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TakeProfitRepository",
			"op":   "FindAll",
		}).WithError(err).Error("Failed to list take profit levels")

		return nil, err
	}

	return levels, nil
}

// Create inserts a new level.
func (r *TakeProfitRepository) Create(
	ctx context.Context,
	tp *model.TakeProfit,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "TakeProfitRepository",
		"op":     "Create",
		"symbol": tp.Symbol,
		"target": tp.Target,
		"qty":    tp.Quantity,
	}).Debug("Adding take profit level")

	if err := r.db.WithContext(ctx).Create(tp).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TakeProfitRepository",
			"op":     "Create",
			"symbol": tp.Symbol,
		}).WithError(err).Error("Failed to create take profit level")

		return err
	}

	return nil
}

// UpdateState rewrites the mutable columns of a level. Target and quantity are the
// level's identity and are left untouched.
func (r *TakeProfitRepository) UpdateState(
	ctx context.Context,
	tp *model.TakeProfit,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "TakeProfitRepository",
		"op":      "UpdateState",
		"id":      tp.ID,
		"enabled": tp.Enabled,
		"price":   tp.Price,
		"hit":     tp.Hit,
	}).Debug("Updating take profit level")

	err := r.db.WithContext(ctx).
		Model(&model.TakeProfit{ID: tp.ID}).
		Updates(map[string]interface{}{
			"enabled": tp.Enabled,
			"price":   tp.Price,
			"hit":     tp.Hit,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TakeProfitRepository",
			"op":   "UpdateState",
			"id":   tp.ID,
		}).WithError(err).Error("Failed to update take profit level")

		return err
	}

	return nil
}

// Save writes every column of a level, identity included.
func (r *TakeProfitRepository) Save(
	ctx context.Context,
	tp *model.TakeProfit,
) error {

	if err := r.db.WithContext(ctx).Save(tp).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TakeProfitRepository",
			"op":   "Save",
			"id":   tp.ID,
		}).WithError(err).Error("Failed to save take profit level")

		return err
	}

	return nil
}

// Delete removes a single level by primary key.
func (r *TakeProfitRepository) Delete(
	ctx context.Context,
	tp *model.TakeProfit,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "TakeProfitRepository",
		"op":     "Delete",
		"symbol": tp.Symbol,
		"id":     tp.ID,
	}).Debug("Removing take profit level")

	if err := r.db.WithContext(ctx).Delete(&model.TakeProfit{}, tp.ID).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TakeProfitRepository",
			"op":   "Delete",
			"id":   tp.ID,
		}).WithError(err).Error("Failed to delete take profit level")

		return err
	}

	return nil
}

// ResetHit clears the trigger state of every level of symbol without removing them.
func (r *TakeProfitRepository) ResetHit(
	ctx context.Context,
	symbol string,
) (int64, error) {

	res := r.db.WithContext(ctx).
		Model(&model.TakeProfit{}).
		Where("symbol = ?", symbol).
		Update("hit", false)

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TakeProfitRepository",
			"op":     "ResetHit",
			"symbol": symbol,
		}).WithError(res.Error).Error("Failed to reset take profit hit state")

		return 0, res.Error
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "TakeProfitRepository",
		"op":     "ResetHit",
		"symbol": symbol,
		"reset":  res.RowsAffected,
	}).Debug("Reset hit status for take profit levels")

	return res.RowsAffected, nil
}
