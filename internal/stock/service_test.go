package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/category"
	"github.com/meridian-erp/meridian-erp/internal/history"
)

type memoryRepo struct {
	categories    map[int64]category.Category
	allocations   map[string]Allocation
	customers     map[int64]CustomerBalance
	vehicles      map[int64]bool
	trail         []history.Entry
	distributions []Distribution
	orders        []Order
	returns       []Return
	damages       []Damage
	pushes        []WarehousePush
	nextID        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		categories:  make(map[int64]category.Category),
		allocations: make(map[string]Allocation),
		customers:   make(map[int64]CustomerBalance),
		vehicles:    make(map[int64]bool),
	}
}

func allocKey(categoryID, vehicleID int64) string {
	return fmt.Sprintf("%d:%d", categoryID, vehicleID)
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx snapshots state and restores it when the callback errors, matching
// the rollback semantics of the real transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	categories := make(map[int64]category.Category, len(r.categories))
	for k, v := range r.categories {
		categories[k] = v
	}
	allocations := make(map[string]Allocation, len(r.allocations))
	for k, v := range r.allocations {
		allocations[k] = v
	}
	customers := make(map[int64]CustomerBalance, len(r.customers))
	for k, v := range r.customers {
		customers[k] = v
	}
	trailLen := len(r.trail)
	distLen, orderLen, retLen, damLen, pushLen := len(r.distributions), len(r.orders), len(r.returns), len(r.damages), len(r.pushes)

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.categories = categories
		r.allocations = allocations
		r.customers = customers
		r.trail = r.trail[:trailLen]
		r.distributions = r.distributions[:distLen]
		r.orders = r.orders[:orderLen]
		r.returns = r.returns[:retLen]
		r.damages = r.damages[:damLen]
		r.pushes = r.pushes[:pushLen]
		return err
	}
	return nil
}

func (r *memoryRepo) VehicleExists(ctx context.Context, vehicleID int64) (bool, error) {
	return r.vehicles[vehicleID], nil
}

func (r *memoryRepo) ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error) {
	var out []Allocation
	for _, a := range r.allocations {
		if filter.CategoryID != 0 && a.CategoryID != filter.CategoryID {
			continue
		}
		if filter.VehicleID != 0 && a.VehicleID != filter.VehicleID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (tx *memoryTx) GetCategoryForUpdate(ctx context.Context, id int64) (category.Category, error) {
	if cat, ok := tx.repo.categories[id]; ok {
		return cat, nil
	}
	return category.Category{}, category.ErrNotFound
}

func (tx *memoryTx) UpdateCategoryLedger(ctx context.Context, c category.Category) error {
	c.RefreshStatus()
	tx.repo.categories[c.ID] = c
	return nil
}

func (tx *memoryTx) GetAllocationForUpdate(ctx context.Context, categoryID, vehicleID int64) (Allocation, error) {
	if a, ok := tx.repo.allocations[allocKey(categoryID, vehicleID)]; ok {
		return a, nil
	}
	return Allocation{CategoryID: categoryID, VehicleID: vehicleID}, ErrAllocationNotFound
}

func (tx *memoryTx) UpsertAllocation(ctx context.Context, a Allocation) error {
	tx.repo.allocations[allocKey(a.CategoryID, a.VehicleID)] = a
	return nil
}

func (tx *memoryTx) GetCustomerForUpdate(ctx context.Context, id int64) (CustomerBalance, error) {
	if c, ok := tx.repo.customers[id]; ok {
		return c, nil
	}
	return CustomerBalance{}, ErrCustomerRequired
}

func (tx *memoryTx) UpdateCustomerBalance(ctx context.Context, b CustomerBalance) error {
	tx.repo.customers[b.ID] = b
	return nil
}

func (tx *memoryTx) InsertDistribution(ctx context.Context, d Distribution) (int64, error) {
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.distributions = append(tx.repo.distributions, d)
	return d.ID, nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	tx.repo.nextID++
	o.ID = tx.repo.nextID
	tx.repo.orders = append(tx.repo.orders, o)
	return o.ID, nil
}

func (tx *memoryTx) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	tx.repo.nextID++
	ret.ID = tx.repo.nextID
	tx.repo.returns = append(tx.repo.returns, ret)
	return ret.ID, nil
}

func (tx *memoryTx) InsertDamage(ctx context.Context, d Damage) (int64, error) {
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.damages = append(tx.repo.damages, d)
	return d.ID, nil
}

func (tx *memoryTx) InsertPush(ctx context.Context, p WarehousePush) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.pushes = append(tx.repo.pushes, p)
	return p.ID, nil
}

func (tx *memoryTx) AppendHistory(ctx context.Context, e history.Entry) error {
	if e.Requisitionist == 0 {
		return history.ErrRequisitionistRequired
	}
	tx.repo.trail = append(tx.repo.trail, e)
	return nil
}

func seedRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.categories[1] = category.Category{
		ID:              1,
		Title:           "Sachet Water",
		ProductionStock: 200,
		WarehouseStock:  100,
		PricePerBox:     decimal.NewFromInt(10),
		SalesPrice:      decimal.NewFromInt(25),
		Status:          category.StatusAvailable,
		WarehouseStatus: category.StatusAvailable,
	}
	repo.vehicles[7] = true
	repo.customers[3] = CustomerBalance{ID: 3, Debt: decimal.Zero, TotalSpent: decimal.Zero}
	return repo
}

func TestDistributeMovesWarehouseStock(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	created, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 40, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, int64(40), created.Boxes)
	require.True(t, created.TotalValue.Equal(decimal.NewFromInt(400)))

	cat := repo.categories[1]
	require.Equal(t, int64(60), cat.WarehouseStock)

	alloc := repo.allocations[allocKey(1, 7)]
	require.Equal(t, int64(40), alloc.Distributed)
	require.True(t, alloc.DistributedValue.Equal(decimal.NewFromInt(400)))

	require.Len(t, repo.trail, 1)
	require.Equal(t, history.EventDistributed, repo.trail[0].Event)
	require.Equal(t, int64(9), repo.trail[0].Requisitionist)
}

func TestDistributeInsufficientStockLeavesStateUntouched(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.Distribute(context.Background(), DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 150, ActorID: 9})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var detail *InsufficientStockError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, int64(150), detail.Requested)
	require.Equal(t, int64(100), detail.Available)

	require.Equal(t, int64(100), repo.categories[1].WarehouseStock)
	require.Empty(t, repo.allocations)
	require.Empty(t, repo.trail)
}

func TestDistributeAccumulatesSingleAllocation(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 30, ActorID: 9})
	require.NoError(t, err)
	_, err = svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 20, ActorID: 9})
	require.NoError(t, err)

	require.Len(t, repo.allocations, 1)
	alloc := repo.allocations[allocKey(1, 7)]
	require.Equal(t, int64(50), alloc.Distributed)
	require.True(t, alloc.DistributedValue.Equal(decimal.NewFromInt(500)))
}

func TestDistributeUnknownVehicle(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.Distribute(context.Background(), DistributeInput{CategoryID: 1, VehicleID: 99, Boxes: 10, ActorID: 9})
	require.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestSellTracksDebtAndAllocation(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 40, ActorID: 9})
	require.NoError(t, err)

	order, err := svc.Sell(ctx, SellInput{
		CategoryID: 1,
		VehicleID:  7,
		CustomerID: 3,
		Boxes:      20,
		Payment:    PaymentSplit{Cash: decimal.NewFromInt(300)},
		ActorID:    9,
	})
	require.NoError(t, err)
	require.True(t, order.TotalPrice.Equal(decimal.NewFromInt(500)))
	require.Equal(t, PaymentPartial, order.PaymentStatus)

	alloc := repo.allocations[allocKey(1, 7)]
	require.Equal(t, int64(20), alloc.Distributed)
	require.Equal(t, int64(20), alloc.Sold)
	require.True(t, alloc.SoldValue.Equal(decimal.NewFromInt(500)))

	customer := repo.customers[3]
	require.True(t, customer.Debt.Equal(decimal.NewFromInt(200)))
	require.True(t, customer.TotalSpent.Equal(decimal.NewFromInt(500)))

	require.Equal(t, history.EventSold, repo.trail[len(repo.trail)-1].Event)
}

func TestSellFullPaymentLeavesNoDebt(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 10, ActorID: 9})
	require.NoError(t, err)

	order, err := svc.Sell(ctx, SellInput{
		CategoryID: 1,
		VehicleID:  7,
		CustomerID: 3,
		Boxes:      10,
		Payment:    PaymentSplit{Bank: decimal.NewFromInt(250)},
		ActorID:    9,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, order.PaymentStatus)
	require.True(t, repo.customers[3].Debt.IsZero())
}

func TestSellWithoutDistributionFails(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.Sell(context.Background(), SellInput{
		CategoryID: 1, VehicleID: 7, CustomerID: 3, Boxes: 5, ActorID: 9,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Empty(t, repo.orders)
}

func TestSellOverpaymentRejected(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 10, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.Sell(ctx, SellInput{
		CategoryID: 1,
		VehicleID:  7,
		CustomerID: 3,
		Boxes:      4,
		Payment:    PaymentSplit{Cash: decimal.NewFromInt(999)},
		ActorID:    9,
	})
	require.ErrorIs(t, err, ErrOverpayment)
	require.True(t, repo.customers[3].TotalSpent.IsZero())
}

func TestReturnRestoresWarehouseStock(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 40, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.Return(ctx, ReturnInput{CategoryID: 1, VehicleID: 7, Boxes: 15, ActorID: 9})
	require.NoError(t, err)

	require.Equal(t, int64(75), repo.categories[1].WarehouseStock)
	alloc := repo.allocations[allocKey(1, 7)]
	require.Equal(t, int64(25), alloc.Distributed)
	require.Equal(t, history.EventReturned, repo.trail[len(repo.trail)-1].Event)
}

func TestReturnMoreThanDistributedFails(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 10, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.Return(ctx, ReturnInput{CategoryID: 1, VehicleID: 7, Boxes: 11, ActorID: 9})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, int64(90), repo.categories[1].WarehouseStock)
}

func TestDamageFromWarehouse(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordDamage(context.Background(), DamageInput{
		CategoryID: 1, Source: DamageWarehouse, Boxes: 10, ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, int64(90), repo.categories[1].WarehouseStock)
	require.Equal(t, history.EventDamaged, repo.trail[len(repo.trail)-1].Event)
}

func TestDamageFromVehicle(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Distribute(ctx, DistributeInput{CategoryID: 1, VehicleID: 7, Boxes: 20, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.RecordDamage(ctx, DamageInput{
		CategoryID: 1, VehicleID: 7, Source: DamageVehicle, Boxes: 5, ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, int64(15), repo.allocations[allocKey(1, 7)].Distributed)
}

func TestDamageUnknownSource(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordDamage(context.Background(), DamageInput{
		CategoryID: 1, Source: "truck", Boxes: 5, ActorID: 9,
	})
	require.ErrorIs(t, err, ErrUnknownDamageSource)
}

func TestPushToWarehouseDrainsProduction(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.PushToWarehouse(context.Background(), PushInput{CategoryID: 1, Boxes: 200, ActorID: 9})
	require.NoError(t, err)

	cat := repo.categories[1]
	require.Equal(t, int64(0), cat.ProductionStock)
	require.Equal(t, int64(300), cat.WarehouseStock)
	require.Equal(t, category.StatusUnavailable, cat.Status)
	require.Equal(t, category.StatusAvailable, cat.WarehouseStatus)
	require.Equal(t, history.EventPushed, repo.trail[len(repo.trail)-1].Event)
}
