package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistributeBatchContinuesPastFailure(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	items := []DistributeInput{
		{CategoryID: 1, VehicleID: 7, Boxes: 30, ActorID: 9},
		{CategoryID: 1, VehicleID: 7, Boxes: 500, ActorID: 9}, // exceeds warehouse stock
		{CategoryID: 1, VehicleID: 7, Boxes: 20, ActorID: 9},
	}
	result, err := svc.DistributeBatch(context.Background(), items, PolicyContinue)
	require.NoError(t, err)
	require.Len(t, result.Applied, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, 1, result.Failed[0].Index)
	require.ErrorIs(t, result.Failed[0].Err, ErrInsufficientStock)

	// both successful items landed, the failed one left nothing behind
	require.Equal(t, int64(50), repo.categories[1].WarehouseStock)
	require.Equal(t, int64(50), repo.allocations[allocKey(1, 7)].Distributed)
}

func TestDistributeBatchAbortStopsAtFirstFailure(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	items := []DistributeInput{
		{CategoryID: 1, VehicleID: 7, Boxes: 30, ActorID: 9},
		{CategoryID: 1, VehicleID: 7, Boxes: 500, ActorID: 9},
		{CategoryID: 1, VehicleID: 7, Boxes: 20, ActorID: 9},
	}
	result, err := svc.DistributeBatch(context.Background(), items, PolicyAbort)
	require.ErrorIs(t, err, ErrBatchAborted)
	require.Len(t, result.Applied, 1)
	require.Len(t, result.Failed, 1)

	// the first item stays applied, the third was never attempted
	require.Equal(t, int64(70), repo.categories[1].WarehouseStock)
	require.Equal(t, int64(30), repo.allocations[allocKey(1, 7)].Distributed)
}

func TestBatchHonoursContextCancellation(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []DistributeInput{{CategoryID: 1, VehicleID: 7, Boxes: 10, ActorID: 9}}
	_, err := svc.DistributeBatch(ctx, items, PolicyContinue)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(100), repo.categories[1].WarehouseStock)
}

func TestSellBatchMixedOutcomes(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 30, ActorID: 9})
	require.NoError(t, err)

	items := []SellInput{
		{CategoryID: 1, VehicleID: 7, CustomerID: 3, Boxes: 10, ActorID: 9},
		{CategoryID: 1, VehicleID: 7, CustomerID: 3, Boxes: 100, ActorID: 9}, // exceeds distributed
		{CategoryID: 1, VehicleID: 7, CustomerID: 3, Boxes: 5, ActorID: 9},
	}
	result, err := svc.SellBatch(ctx, items, PolicyContinue)
	require.NoError(t, err)
	require.Len(t, result.Applied, 2)
	require.Len(t, result.Failed, 1)

	alloc := repo.allocations[allocKey(1, 7)]
	require.Equal(t, int64(15), alloc.Distributed)
	require.Equal(t, int64(15), alloc.Sold)
}
