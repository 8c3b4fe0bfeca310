package stock

import (
	"context"
	"errors"
	"fmt"
)

// BatchPolicy controls what happens to the rest of a batch after one item fails.
type BatchPolicy int

const (
	// PolicyContinue applies the remaining items and reports the failure.
	PolicyContinue BatchPolicy = iota
	// PolicyAbort stops at the first failure. Items already applied stay
	// applied; a partially-applied batch is a documented, reachable outcome.
	PolicyAbort
)

// ItemFailure reports one failed line item.
type ItemFailure struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// BatchResult collects per-item outcomes of a sequential batch.
type BatchResult[T any] struct {
	Applied []T           `json:"applied"`
	Failed  []ItemFailure `json:"failed"`
}

// ErrBatchAborted wraps the failing item's error in abort mode.
var ErrBatchAborted = errors.New("stock: batch aborted")

// processBatch runs items strictly sequentially. Parallel application would
// widen lock contention on shared category rows for no throughput gain, since
// every item against one category serializes on the row lock anyway.
func processBatch[I, R any](ctx context.Context, items []I, policy BatchPolicy, apply func(context.Context, I) (R, error)) (BatchResult[R], error) {
	var result BatchResult[R]
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		applied, err := apply(ctx, item)
		if err != nil {
			result.Failed = append(result.Failed, ItemFailure{Index: i, Message: err.Error(), Err: err})
			if policy == PolicyAbort {
				return result, fmt.Errorf("%w: item %d: %v", ErrBatchAborted, i, err)
			}
			continue
		}
		result.Applied = append(result.Applied, applied)
	}
	return result, nil
}

// DistributeBatch applies a list of distributions sequentially.
func (s *Service) DistributeBatch(ctx context.Context, items []DistributeInput, policy BatchPolicy) (BatchResult[Distribution], error) {
	return processBatch(ctx, items, policy, s.Distribute)
}

// SellBatch applies a list of sales sequentially.
func (s *Service) SellBatch(ctx context.Context, items []SellInput, policy BatchPolicy) (BatchResult[Order], error) {
	return processBatch(ctx, items, policy, s.Sell)
}

// ReturnBatch applies a list of returns sequentially.
func (s *Service) ReturnBatch(ctx context.Context, items []ReturnInput, policy BatchPolicy) (BatchResult[Return], error) {
	return processBatch(ctx, items, policy, s.Return)
}

// DamageBatch applies a list of damage write-offs sequentially.
func (s *Service) DamageBatch(ctx context.Context, items []DamageInput, policy BatchPolicy) (BatchResult[Damage], error) {
	return processBatch(ctx, items, policy, s.RecordDamage)
}
