package service

import (
	"context"

	"orderstate/src/apperr"
	"orderstate/src/model"
	"orderstate/src/repository"

	logger "github.com/sirupsen/logrus"
)

// ReconcileResult counts the writes issued to converge a symbol's levels.
type ReconcileResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

func (r ReconcileResult) Add(o ReconcileResult) ReconcileResult {
	return ReconcileResult{
		Inserted:  r.Inserted + o.Inserted,
		Updated:   r.Updated + o.Updated,
		Unchanged: r.Unchanged + o.Unchanged,
		Deleted:   r.Deleted + o.Deleted,
	}
}

// TPReconciler converges the persisted take-profit levels of a symbol to a desired set.
type TPReconciler struct {
	levels *repository.TakeProfitRepository
}

func NewTPReconciler(levels *repository.TakeProfitRepository) *TPReconciler {
	return &TPReconciler{levels: levels}
}

// Reconcile matches desired levels to persisted rows by (target, quantity).
// Matched rows get enabled/price/hit rewritten when they differ, unmatched desired
// levels are inserted, and persisted rows left unmatched are deleted. When desired
// holds the same key twice the later entry wins. An empty desired set clears the
// symbol.
func (r *TPReconciler) Reconcile(ctx context.Context, symbol string, desired []model.TPLevel) (ReconcileResult, error) {
	var res ReconcileResult
	log := logger.WithFields(map[string]interface{}{
		"component": "TPReconciler",
		"symbol":    symbol,
	})

	existing, err := r.levels.FindBySymbol(ctx, symbol)
	if err != nil {
		return res, apperr.Persistence("load take profit levels", err)
	}

	// Rows sharing a key (only possible through positional edits) collapse onto the
	// oldest one; the others are removed below.
	byKey := make(map[model.TPKey]*model.TakeProfit, len(existing))
	for i := range existing {
		if _, ok := byKey[existing[i].Key()]; !ok {
			byKey[existing[i].Key()] = &existing[i]
		}
	}

	keys, wanted := collapse(desired)
	seen := make(map[model.TPKey]struct{}, len(keys))

	for _, key := range keys {
		level := wanted[key]
		seen[key] = struct{}{}

		tp, ok := byKey[key]
		if !ok {
			row := &model.TakeProfit{
				Symbol:   symbol,
				Enabled:  level.Enabled,
				Quantity: level.Quantity,
				Target:   level.Target,
				Price:    level.Price,
				Hit:      level.Hit,
			}
			if err := r.levels.Create(ctx, row); err != nil {
				return res, apperr.Persistence("insert take profit level", err)
			}
			res.Inserted++
			continue
		}

		if tp.Enabled == level.Enabled && tp.Price == level.Price && tp.Hit == level.Hit {
			res.Unchanged++
			continue
		}
		tp.Enabled, tp.Price, tp.Hit = level.Enabled, level.Price, level.Hit
		if err := r.levels.UpdateState(ctx, tp); err != nil {
			return res, apperr.Persistence("update take profit level", err)
		}
		res.Updated++
	}

	for i := range existing {
		tp := &existing[i]
		_, kept := seen[tp.Key()]
		if kept && byKey[tp.Key()] == tp {
			continue
		}
		if err := r.levels.Delete(ctx, tp); err != nil {
			return res, apperr.Persistence("delete take profit level", err)
		}
		res.Deleted++
	}

	log.WithFields(map[string]interface{}{
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"unchanged": res.Unchanged,
		"deleted":   res.Deleted,
	}).Debug("Finished processing TP levels")

	return res, nil
}

// collapse keeps one level per key, the last one sent, ordered by first appearance.
func collapse(desired []model.TPLevel) ([]model.TPKey, map[model.TPKey]model.TPLevel) {
	keys := make([]model.TPKey, 0, len(desired))
	wanted := make(map[model.TPKey]model.TPLevel, len(desired))
	for _, level := range desired {
		if _, ok := wanted[level.Key()]; !ok {
			keys = append(keys, level.Key())
		}
		wanted[level.Key()] = level
	}
	return keys, wanted
}
