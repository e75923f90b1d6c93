// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pool runs independent jobs under a concurrency ceiling and
// returns their outcomes in input order.
package pool

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidLimit is returned when the concurrency ceiling is below 1.
	ErrInvalidLimit = errors.New("pool: limit must be at least 1")

	// ErrWorkerPanic wraps a panic recovered from a worker.
	ErrWorkerPanic = errors.New("pool: worker panicked")
)

// Worker processes one item. index is the item's position in the input slice.
type Worker[T, R any] func(ctx context.Context, item T, index int) (R, error)

// Outcome is the result slot for one item. Err is set when the worker
// returned an error, panicked, or never started because ctx was done.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Run executes worker for every item with at most limit invocations in
// flight. A slot is released as soon as its worker returns, so the next
// queued item starts without waiting for the rest of a batch.
//
// Worker errors are stored in the matching Outcome and never stop sibling
// workers. Run itself only fails when limit < 1. If ctx is cancelled,
// items that have not started get ctx.Err() as their outcome; running
// workers see the cancelled ctx and are expected to return promptly.
func Run[T, R any](ctx context.Context, items []T, limit int, worker Worker[T, R]) ([]Outcome[R], error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if worker == nil {
		return nil, errors.New("pool: worker is nil")
	}
	if len(items) == 0 {
		return []Outcome[R]{}, nil
	}

	outcomes := make([]Outcome[R], len(items))

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				outcomes[j].Err = err
			}
			break
		}
		// Go blocks while limit workers are in flight.
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			outcomes[i] = invoke(ctx, worker, item, i)
			return nil
		})
	}

	// Workers never return errors; failures live in outcomes.
	_ = g.Wait()
	return outcomes, nil
}

func invoke[T, R any](ctx context.Context, worker Worker[T, R], item T, index int) (out Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[R]{Err: fmt.Errorf("%w: item %d: %v", ErrWorkerPanic, index, r)}
		}
	}()
	v, err := worker(ctx, item, index)
	return Outcome[R]{Value: v, Err: err}
}
