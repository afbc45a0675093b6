package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"orderstate/src/apperr"
	"orderstate/src/model"
	"orderstate/src/repository"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service owns the unit of work: every public method runs in one transaction that
// commits on success and rolls back entirely on any error.
type Service struct {
	db     *gorm.DB
	orders *repository.OrderRepository
	levels *repository.TakeProfitRepository
	now    func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:     db,
		orders: repository.NewOrderRepository(db),
		levels: repository.NewTakeProfitRepository(db),
		now:    time.Now,
	}
}

// WithClock returns a copy of the service using now as the default order timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// unit groups the components bound to one transaction.
type unit struct {
	orders     *repository.OrderRepository
	levels     *repository.TakeProfitRepository
	upserter   *OrderUpserter
	reconciler *TPReconciler
}

func (s *Service) transact(ctx context.Context, op string, fn func(u unit) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithDB(tx)
		levels := s.levels.WithDB(tx)
		return fn(unit{
			orders:     orders,
			levels:     levels,
			upserter:   NewOrderUpserter(orders, levels, s.now),
			reconciler: NewTPReconciler(levels),
		})
	})
	return apperr.Persistence(op, err)
}

type orderStep struct {
	symbol string
	fields model.OrderFields
}

type tpStep struct {
	symbol string
	levels []model.TPLevel
}

// HandleUpdate normalizes either payload shape into order upserts and TP
// reconciliations and applies all of them atomically. Orders are processed before
// TP levels, each group in symbol order.
func (s *Service) HandleUpdate(ctx context.Context, payload model.UpdatePayload) error {
	orderSteps, tpSteps, err := plan(payload)
	if err != nil {
		return err
	}

	log := logger.WithFields(map[string]interface{}{
		"batch_id": uuid.NewString(),
		"orders":   len(orderSteps),
		"tp_sets":  len(tpSteps),
	})
	log.Debug("Processing update")

	var total ReconcileResult
	err = s.transact(ctx, "update state", func(u unit) error {
		for _, step := range orderSteps {
			if err := u.upserter.Upsert(ctx, step.symbol, step.fields); err != nil {
				return err
			}
		}
		for _, step := range tpSteps {
			res, err := u.reconciler.Reconcile(ctx, step.symbol, step.levels)
			if err != nil {
				return err
			}
			total = total.Add(res)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Update rolled back")
		return err
	}

	log.WithFields(map[string]interface{}{
		"tp_inserted": total.Inserted,
		"tp_updated":  total.Updated,
		"tp_deleted":  total.Deleted,
	}).Info("Database changes committed successfully")
	return nil
}

// plan validates the payload before any transaction is opened. Top-level order
// fields next to active_orders are rejected rather than ignored.
func plan(payload model.UpdatePayload) ([]orderStep, []tpStep, error) {
	var orderSteps []orderStep

	switch {
	case payload.ActiveOrders != nil:
		if payload.Ticker.Set || payload.HasOrderFields() {
			return nil, nil, apperr.Validation("ticker", "cannot be combined with active_orders")
		}
		orderSteps = make([]orderStep, 0, len(payload.ActiveOrders))
		for _, symbol := range sortedKeys(payload.ActiveOrders) {
			if symbol == "" {
				return nil, nil, apperr.Validation("active_orders", "symbol is empty")
			}
			orderSteps = append(orderSteps, orderStep{symbol: symbol, fields: payload.ActiveOrders[symbol]})
		}
	case payload.Ticker.Present():
		symbol := model.NormalizeTicker(payload.Ticker.Value)
		if symbol == "" {
			return nil, nil, apperr.Validation("ticker", "is empty")
		}
		orderSteps = []orderStep{{symbol: symbol, fields: payload.OrderFields}}
	case payload.Ticker.Set:
		return nil, nil, apperr.Validation("ticker", "must not be null")
	case payload.TPLevels == nil || payload.HasOrderFields():
		return nil, nil, apperr.Validation("ticker", "is required")
	}

	tpSteps := make([]tpStep, 0, len(payload.TPLevels))
	for _, symbol := range sortedKeys(payload.TPLevels) {
		if symbol == "" {
			return nil, nil, apperr.Validation("tp_levels", "symbol is empty")
		}
		levels, err := ValidateTPLevels(symbol, payload.TPLevels[symbol])
		if err != nil {
			return nil, nil, err
		}
		tpSteps = append(tpSteps, tpStep{symbol: symbol, levels: levels})
	}

	return orderSteps, tpSteps, nil
}

// ValidateTPLevels requires every field on every entry.
func ValidateTPLevels(symbol string, inputs []model.TPLevelInput) ([]model.TPLevel, error) {
	levels := make([]model.TPLevel, 0, len(inputs))
	for i, in := range inputs {
		level, err := in.Level()
		if err != nil {
			return nil, fmt.Errorf("tp level %d of %s: %w", i, symbol, err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// ActiveState returns every order keyed by symbol and every TP level grouped by
// symbol, read from one snapshot.
func (s *Service) ActiveState(ctx context.Context) (map[string]model.OrderDict, map[string][]model.TPDict, error) {
	orders := map[string]model.OrderDict{}
	levels := map[string][]model.TPDict{}

	err := s.transact(ctx, "fetch active orders", func(u unit) error {
		rows, err := u.orders.FindAll(ctx)
		if err != nil {
			return err
		}
		for _, o := range rows {
			orders[o.Symbol] = o.ToDict()
		}

		tps, err := u.levels.FindAll(ctx)
		if err != nil {
			return err
		}
		for _, tp := range tps {
			levels[tp.Symbol] = append(levels[tp.Symbol], tp.ToDict())
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return orders, levels, nil
}

// ReplaceTPLevels fully reconciles the levels of one symbol.
func (s *Service) ReplaceTPLevels(ctx context.Context, symbol string, inputs []model.TPLevelInput) (ReconcileResult, error) {
	desired, err := ValidateTPLevels(symbol, inputs)
	if err != nil {
		return ReconcileResult{}, err
	}

	var res ReconcileResult
	err = s.transact(ctx, "save take profit levels", func(u unit) error {
		var err error
		res, err = u.reconciler.Reconcile(ctx, symbol, desired)
		return err
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	logger.WithField("symbol", symbol).Debug("TP levels saved successfully")
	return res, nil
}

// TPLevels returns the levels of symbol in retrieval order.
func (s *Service) TPLevels(ctx context.Context, symbol string) ([]model.TakeProfit, error) {
	levels, err := s.levels.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, apperr.Persistence("fetch take profit levels", err)
	}
	return levels, nil
}

// UpdateTPLevelAt merges patch into the level at a zero-based position of the
// symbol's current retrieval order. The position is not an identity: a concurrent
// reconciliation of the same symbol may shift it.
func (s *Service) UpdateTPLevelAt(ctx context.Context, symbol string, index int, patch model.TPLevelInput) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	return s.transact(ctx, "update take profit level", func(u unit) error {
		levels, err := u.levels.FindBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(levels) {
			return apperr.NotFound("TP level index %d out of range for %s", index, symbol)
		}

		tp := levels[index]
		patch.ApplyTo(&tp)
		if err := u.levels.Save(ctx, &tp); err != nil {
			return err
		}

		logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"index":  index,
		}).Debug("Updated individual TP level")
		return nil
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
