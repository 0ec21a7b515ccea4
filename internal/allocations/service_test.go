package allocations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
)

type stubAllocationsRepo struct {
	allocations map[string]*models.TeacherAllocation
}

func newStubAllocationsRepo() *stubAllocationsRepo {
	return &stubAllocationsRepo{allocations: make(map[string]*models.TeacherAllocation)}
}

func allocationKey(teacherID, itemID uuid.UUID) string {
	return teacherID.String() + "/" + itemID.String()
}

func (s *stubAllocationsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubAllocationsRepo) Upsert(ctx context.Context, allocation *models.TeacherAllocation) error {
	key := allocationKey(allocation.TeacherID, allocation.ItemID)
	if existing, ok := s.allocations[key]; ok {
		existing.Quantity = allocation.Quantity
		return nil
	}
	copied := *allocation
	s.allocations[key] = &copied
	return nil
}

func (s *stubAllocationsRepo) FindByTeacherAndItem(ctx context.Context, teacherID, itemID uuid.UUID) (*models.TeacherAllocation, error) {
	allocation, ok := s.allocations[allocationKey(teacherID, itemID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *allocation
	return &copied, nil
}

func (s *stubAllocationsRepo) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherAllocation, error) {
	var rows []models.TeacherAllocation
	for _, allocation := range s.allocations {
		if allocation.TeacherID == teacherID {
			rows = append(rows, *allocation)
		}
	}
	return rows, nil
}

func (s *stubAllocationsRepo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error) {
	var rows []models.TeacherAllocation
	for _, allocation := range s.allocations {
		if allocation.ItemID == itemID {
			rows = append(rows, *allocation)
		}
	}
	return rows, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubDispatcher struct {
	events []events.Event
}

func (s *stubDispatcher) Dispatch(ctx context.Context, tx *gorm.DB, evts []events.Event) error {
	s.events = append(s.events, evts...)
	return nil
}

type stubUserLoader struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubItemLoader struct {
	items map[uuid.UUID]*models.Item
}

func (s *stubItemLoader) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return item, nil
}

type allocationFixture struct {
	repo       *stubAllocationsRepo
	dispatcher *stubDispatcher
	svc        Service
	teacher    *models.User
	item       *models.Item
}

func newAllocationFixture(t *testing.T) *allocationFixture {
	t.Helper()

	teacher := &models.User{ID: uuid.New(), Name: "Ms. Chen", Role: enums.RoleTeacher}
	manager := &models.User{ID: uuid.New(), Name: "Mr. Okafor", Role: enums.RoleStockManager}
	item := &models.Item{ID: uuid.New(), Name: "Crayons", Quantity: 40, LowStockThreshold: 10}

	repo := newStubAllocationsRepo()
	dispatcher := &stubDispatcher{}
	users := &stubUserLoader{users: map[uuid.UUID]*models.User{teacher.ID: teacher, manager.ID: manager}}
	items := &stubItemLoader{items: map[uuid.UUID]*models.Item{item.ID: item}}

	svc, err := NewService(repo, stubTxRunner{}, users, items, dispatcher)
	require.NoError(t, err)

	return &allocationFixture{repo: repo, dispatcher: dispatcher, svc: svc, teacher: teacher, item: item}
}

func TestAssignCreatesAllocation(t *testing.T) {
	f := newAllocationFixture(t)

	allocation, err := f.svc.Assign(context.Background(), AssignInput{
		TeacherID: f.teacher.ID,
		ItemID:    f.item.ID,
		Quantity:  12,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, allocation.Quantity)
	require.Len(t, f.dispatcher.events, 1)
	evt, ok := f.dispatcher.events[0].(events.AllocationAssigned)
	require.True(t, ok)
	assert.Equal(t, f.teacher.ID, evt.Allocation.TeacherID)
	assert.Equal(t, "Crayons", evt.Item.Name)
}

func TestAssignUpsertsExisting(t *testing.T) {
	f := newAllocationFixture(t)

	_, err := f.svc.Assign(context.Background(), AssignInput{TeacherID: f.teacher.ID, ItemID: f.item.ID, Quantity: 5})
	require.NoError(t, err)

	allocation, err := f.svc.Assign(context.Background(), AssignInput{TeacherID: f.teacher.ID, ItemID: f.item.ID, Quantity: 9})
	require.NoError(t, err)

	assert.Equal(t, 9, allocation.Quantity)
	assert.Len(t, f.repo.allocations, 1, "upsert must not create a second row")
}

func TestAssignRejectsNonTeacher(t *testing.T) {
	f := newAllocationFixture(t)

	manager := &models.User{ID: uuid.New(), Role: enums.RoleStockManager}
	users := &stubUserLoader{users: map[uuid.UUID]*models.User{manager.ID: manager}}
	svc, err := NewService(f.repo, stubTxRunner{}, users, &stubItemLoader{items: map[uuid.UUID]*models.Item{f.item.ID: f.item}}, f.dispatcher)
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), AssignInput{TeacherID: manager.ID, ItemID: f.item.ID, Quantity: 3})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestAssignValidation(t *testing.T) {
	f := newAllocationFixture(t)

	_, err := f.svc.Assign(context.Background(), AssignInput{TeacherID: f.teacher.ID, ItemID: f.item.ID, Quantity: 0})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))

	_, err = f.svc.Assign(context.Background(), AssignInput{TeacherID: uuid.New(), ItemID: f.item.ID, Quantity: 2})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Assign(context.Background(), AssignInput{TeacherID: f.teacher.ID, ItemID: uuid.New(), Quantity: 2})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestListByTeacher(t *testing.T) {
	f := newAllocationFixture(t)

	_, err := f.svc.Assign(context.Background(), AssignInput{TeacherID: f.teacher.ID, ItemID: f.item.ID, Quantity: 4})
	require.NoError(t, err)

	rows, err := f.svc.ListByTeacher(context.Background(), f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Quantity)

	rows, err = f.svc.ListByTeacher(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
