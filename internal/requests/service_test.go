package requests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/internal/inventory"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
	"github.com/schoolstock/stockroom-backend/pkg/pagination"
)

type stubRequestsRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.Request

	createErr error
}

func newStubRequestsRepo() *stubRequestsRepo {
	return &stubRequestsRepo{requests: make(map[uuid.UUID]*models.Request)}
}

func (s *stubRequestsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubRequestsRepo) Create(ctx context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func (s *stubRequestsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *request
	return &copied, nil
}

func (s *stubRequestsRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	return s.FindByID(ctx, id)
}

func (s *stubRequestsRepo) UpdateDecision(ctx context.Context, id uuid.UUID, status enums.RequestStatus, deciderID uuid.UUID, notes *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	request.Status = status
	request.DeciderID = &deciderID
	if notes != nil {
		request.Notes = notes
	}
	return nil
}

func (s *stubRequestsRepo) ListByRequester(ctx context.Context, params listRequestsParams) ([]models.Request, *pagination.Cursor, error) {
	var rows []models.Request
	for _, request := range s.requests {
		if request.RequesterID == params.RequesterID {
			rows = append(rows, *request)
		}
	}
	return rows, nil, nil
}

func (s *stubRequestsRepo) ListPending(ctx context.Context, params listRequestsParams) ([]models.Request, *pagination.Cursor, error) {
	var rows []models.Request
	for _, request := range s.requests {
		if request.Status == enums.RequestStatusPending {
			rows = append(rows, *request)
		}
	}
	return rows, nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *stubDispatcher) Dispatch(ctx context.Context, tx *gorm.DB, evts []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts...)
	return nil
}

type stubStock struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*models.Item
	adjusts []inventory.AdjustInput
}

func newStubStock(items ...*models.Item) *stubStock {
	byID := make(map[uuid.UUID]*models.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return &stubStock{items: byID}
}

func (s *stubStock) GetItemInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	copied := *item
	return &copied, nil
}

// AdjustInTx performs the check-and-deduct under one lock, the way the row
// lock serializes it in Postgres.
func (s *stubStock) AdjustInTx(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*inventory.AdjustOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[input.ItemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	newQty := item.Quantity + input.Delta
	if newQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for this adjustment").
			WithDetails(map[string]any{"available": item.Quantity, "requested": -input.Delta})
	}
	s.adjusts = append(s.adjusts, input)

	previousQty := item.Quantity
	item.Quantity = newQty
	item.Status = inventory.StatusFor(newQty, item.LowStockThreshold)

	copied := *item
	outcome := &inventory.AdjustOutcome{
		Item:            &copied,
		LowStockCrossed: inventory.LowStockCrossed(previousQty, newQty, item.LowStockThreshold),
	}
	if outcome.LowStockCrossed {
		outcome.Events = append(outcome.Events, events.LowStockCrossed{Item: copied})
	}
	return outcome, nil
}

func (s *stubStock) quantity(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Quantity
}

func newWorkflow(t *testing.T, repo *stubRequestsRepo, stock *stubStock, dispatcher *stubDispatcher) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, stock, dispatcher, nil, 2, time.Millisecond)
	require.NoError(t, err)
	return svc
}

func workflowItem(quantity, threshold int) *models.Item {
	return &models.Item{
		ID:                uuid.New(),
		Name:              "Sticky Notes",
		Quantity:          quantity,
		LowStockThreshold: threshold,
		Status:            inventory.StatusFor(quantity, threshold),
	}
}

func approver() Decider {
	return Decider{UserID: uuid.New(), Role: enums.RoleStockManager}
}

func TestCreateRequestStartsPending(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	dispatcher := &stubDispatcher{}
	svc := newWorkflow(t, repo, newStubStock(item), dispatcher)

	requesterID := uuid.New()
	request, err := svc.Create(context.Background(), requesterID, CreateInput{ItemID: item.ID, Quantity: 4})
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusPending, request.Status)
	assert.Equal(t, requesterID, request.RequesterID)
	require.Len(t, dispatcher.events, 1)
	evt, ok := dispatcher.events[0].(events.NewRequestCreated)
	require.True(t, ok)
	assert.Equal(t, request.ID, evt.Request.ID)
}

func TestCreateRequestDoesNotCheckAvailability(t *testing.T) {
	item := workflowItem(2, 5)
	svc := newWorkflow(t, newStubRequestsRepo(), newStubStock(item), &stubDispatcher{})

	request, err := svc.Create(context.Background(), uuid.New(), CreateInput{ItemID: item.ID, Quantity: 50})
	require.NoError(t, err, "stock is only enforced at decision time")
	assert.Equal(t, enums.RequestStatusPending, request.Status)
}

func TestCreateRequestValidation(t *testing.T) {
	item := workflowItem(10, 5)
	svc := newWorkflow(t, newStubRequestsRepo(), newStubStock(item), &stubDispatcher{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{ItemID: item.ID, Quantity: 0})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))

	_, err = svc.Create(context.Background(), uuid.Nil, CreateInput{ItemID: item.ID, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(context.Background(), uuid.New(), CreateInput{ItemID: uuid.New(), Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCreateBatchAllOrNothing(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	svc := newWorkflow(t, repo, newStubStock(item), &stubDispatcher{})

	_, err := svc.CreateBatch(context.Background(), uuid.New(), []CreateInput{
		{ItemID: item.ID, Quantity: 2},
		{ItemID: item.ID, Quantity: -1},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))
	assert.Empty(t, repo.requests, "an invalid line must reject the whole batch")
}

func TestCreateBatchSuccess(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	dispatcher := &stubDispatcher{}
	svc := newWorkflow(t, repo, newStubStock(item), dispatcher)

	created, err := svc.CreateBatch(context.Background(), uuid.New(), []CreateInput{
		{ItemID: item.ID, Quantity: 2},
		{ItemID: item.ID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, repo.requests, 2)
	assert.Len(t, dispatcher.events, 2)
}

func seedPendingRequest(repo *stubRequestsRepo, item *models.Item, quantity int) *models.Request {
	request := &models.Request{
		ID:          uuid.New(),
		ItemID:      item.ID,
		RequesterID: uuid.New(),
		Quantity:    quantity,
		Status:      enums.RequestStatusPending,
	}
	repo.requests[request.ID] = request
	return request
}

func TestDecideApproveDeductsStock(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	stock := newStubStock(item)
	dispatcher := &stubDispatcher{}
	svc := newWorkflow(t, repo, stock, dispatcher)

	request := seedPendingRequest(repo, item, 4)
	decider := approver()

	decided, err := svc.Decide(context.Background(), decider, request.ID, DecideInput{Decision: enums.RequestDecisionApprove})
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusApproved, decided.Status)
	require.NotNil(t, decided.DeciderID)
	assert.Equal(t, decider.UserID, *decided.DeciderID)
	assert.Equal(t, 6, item.Quantity)

	require.Len(t, stock.adjusts, 1)
	adjust := stock.adjusts[0]
	assert.Equal(t, -4, adjust.Delta)
	assert.Equal(t, "request approved", adjust.Reason)
	require.NotNil(t, adjust.RequestID)
	assert.Equal(t, request.ID, *adjust.RequestID)

	require.Len(t, dispatcher.events, 1)
	evt, ok := dispatcher.events[0].(events.RequestStatusChanged)
	require.True(t, ok)
	assert.Equal(t, enums.RequestStatusApproved, evt.Status)
}

func TestDecideApproveInsufficientStockKeepsPending(t *testing.T) {
	item := workflowItem(3, 5)
	repo := newStubRequestsRepo()
	stock := newStubStock(item)
	dispatcher := &stubDispatcher{}
	svc := newWorkflow(t, repo, stock, dispatcher)

	request := seedPendingRequest(repo, item, 8)

	_, err := svc.Decide(context.Background(), approver(), request.ID, DecideInput{Decision: enums.RequestDecisionApprove})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	assert.Equal(t, enums.RequestStatusPending, repo.requests[request.ID].Status, "failed approval leaves the request pending")
	assert.Equal(t, 3, item.Quantity)
	assert.Empty(t, dispatcher.events)
}

func TestDecideRejectLeavesStockUntouched(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	stock := newStubStock(item)
	dispatcher := &stubDispatcher{}
	svc := newWorkflow(t, repo, stock, dispatcher)

	request := seedPendingRequest(repo, item, 4)
	notes := "budget freeze"

	decided, err := svc.Decide(context.Background(), approver(), request.ID, DecideInput{
		Decision: enums.RequestDecisionReject,
		Notes:    &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusRejected, decided.Status)
	assert.Equal(t, 10, item.Quantity)
	assert.Empty(t, stock.adjusts)

	require.Len(t, dispatcher.events, 1)
	evt, ok := dispatcher.events[0].(events.RequestStatusChanged)
	require.True(t, ok)
	assert.Equal(t, enums.RequestStatusRejected, evt.Status)
}

func TestDecideIsTerminal(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	stock := newStubStock(item)
	svc := newWorkflow(t, repo, stock, &stubDispatcher{})

	request := seedPendingRequest(repo, item, 2)
	decider := approver()

	_, err := svc.Decide(context.Background(), decider, request.ID, DecideInput{Decision: enums.RequestDecisionApprove})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), decider, request.ID, DecideInput{Decision: enums.RequestDecisionReject})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, enums.RequestStatusApproved, repo.requests[request.ID].Status)
	assert.Equal(t, 8, item.Quantity, "a second decision must not deduct again")
}

func TestDecideRequiresApproverRole(t *testing.T) {
	item := workflowItem(10, 5)
	repo := newStubRequestsRepo()
	svc := newWorkflow(t, repo, newStubStock(item), &stubDispatcher{})

	request := seedPendingRequest(repo, item, 2)

	_, err := svc.Decide(context.Background(), Decider{UserID: uuid.New(), Role: enums.RoleTeacher}, request.ID, DecideInput{Decision: enums.RequestDecisionApprove})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, enums.RequestStatusPending, repo.requests[request.ID].Status)
}

func TestDecideUnknownRequest(t *testing.T) {
	item := workflowItem(10, 5)
	svc := newWorkflow(t, newStubRequestsRepo(), newStubStock(item), &stubDispatcher{})

	_, err := svc.Decide(context.Background(), approver(), uuid.New(), DecideInput{Decision: enums.RequestDecisionApprove})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDecideApproveEmitsLowStockCrossing(t *testing.T) {
	item := workflowItem(7, 5)
	repo := newStubRequestsRepo()
	dispatcher := &stubDispatcher{}
	svc := newWorkflow(t, repo, newStubStock(item), dispatcher)

	request := seedPendingRequest(repo, item, 3)

	_, err := svc.Decide(context.Background(), approver(), request.ID, DecideInput{Decision: enums.RequestDecisionApprove})
	require.NoError(t, err)

	require.Len(t, dispatcher.events, 2)
	_, isLowStock := dispatcher.events[0].(events.LowStockCrossed)
	assert.True(t, isLowStock, "7 -> 4 crosses the threshold")
	_, isStatus := dispatcher.events[1].(events.RequestStatusChanged)
	assert.True(t, isStatus)
}

func TestConcurrentApprovalsDoNotOversell(t *testing.T) {
	item := workflowItem(10, 0)
	repo := newStubRequestsRepo()
	stock := newStubStock(item)
	svc := newWorkflow(t, repo, stock, &stubDispatcher{})

	first := seedPendingRequest(repo, item, 6)
	second := seedPendingRequest(repo, item, 7)
	decider := approver()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.Decide(context.Background(), decider, id, DecideInput{Decision: enums.RequestDecisionApprove})
		}(i, id)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
			failed++
		}
	}
	require.Equal(t, 1, failed, "only one of 6+7 can fit in 10")

	remaining := stock.quantity(item.ID)
	assert.GreaterOrEqual(t, remaining, 0, "stock must never go negative")
	assert.Contains(t, []int{3, 4}, remaining)

	for i, id := range []uuid.UUID{first.ID, second.ID} {
		stored, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		if errs[i] != nil {
			assert.Equal(t, enums.RequestStatusPending, stored.Status, "failed approval stays pending")
		} else {
			assert.Equal(t, enums.RequestStatusApproved, stored.Status)
		}
	}
}
