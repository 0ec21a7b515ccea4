package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
)

type stubApproverDirectory struct {
	ids []uuid.UUID
	err error
}

func (s *stubApproverDirectory) ListApproverIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids, s.err
}

func dispatcherItem() models.Item {
	return models.Item{
		ID:                uuid.New(),
		Name:              "Copy Paper",
		Quantity:          4,
		LowStockThreshold: 5,
		Status:            enums.ItemStatusLowStock,
	}
}

func TestDispatchLowStockFansOutToApprovers(t *testing.T) {
	repo := &stubNotificationsRepo{}
	approvers := &stubApproverDirectory{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	dispatcher, err := NewDispatcher(repo, approvers, nil, nil, nil)
	require.NoError(t, err)

	item := dispatcherItem()
	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{events.LowStockCrossed{Item: item}})
	require.NoError(t, err)

	require.Len(t, repo.rows, 2)
	for _, row := range repo.rows {
		assert.Equal(t, enums.NotificationTypeLowStock, row.Type)
		assert.Equal(t, "Copy Paper is running low. Current quantity: 4 (Threshold: 5)", row.Message)
		require.NotNil(t, row.EntityKind)
		assert.Equal(t, enums.EntityKindItem, *row.EntityKind)
		require.NotNil(t, row.EntityID)
		assert.Equal(t, item.ID, *row.EntityID)
		require.NotNil(t, row.Link)
		assert.Equal(t, "/inventory/"+item.ID.String(), *row.Link)
	}
}

func TestDispatchAllocationLowTargetsTeacher(t *testing.T) {
	repo := &stubNotificationsRepo{}
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{}, nil, nil, nil)
	require.NoError(t, err)

	item := dispatcherItem()
	teacherID := uuid.New()
	allocation := models.TeacherAllocation{ID: uuid.New(), TeacherID: teacherID, ItemID: item.ID, Quantity: 2}
	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.AllocationLow{Item: item, Allocation: allocation},
	})
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, teacherID, row.RecipientID)
	assert.Equal(t, "Your assigned Copy Paper is running low. Current quantity: 2", row.Message)
	require.NotNil(t, row.Link)
	assert.Equal(t, "/teacher-inventory/"+item.ID.String(), *row.Link)
}

func TestDispatchNewRequestNotifiesApprovers(t *testing.T) {
	repo := &stubNotificationsRepo{}
	approverID := uuid.New()
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{ids: []uuid.UUID{approverID}}, nil, nil, nil)
	require.NoError(t, err)

	item := dispatcherItem()
	request := models.Request{ID: uuid.New(), ItemID: item.ID, RequesterID: uuid.New(), Quantity: 6}
	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.NewRequestCreated{Request: request, Item: item},
	})
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, approverID, row.RecipientID)
	assert.Equal(t, enums.NotificationTypeNewRequest, row.Type)
	assert.Equal(t, "New request for Copy Paper (Quantity: 6)", row.Message)
	require.NotNil(t, row.Link)
	assert.Equal(t, "/requests/"+request.ID.String(), *row.Link)
}

func TestDispatchRequestStatusNotifiesRequester(t *testing.T) {
	repo := &stubNotificationsRepo{}
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{}, nil, nil, nil)
	require.NoError(t, err)

	item := dispatcherItem()
	requesterID := uuid.New()
	request := models.Request{ID: uuid.New(), ItemID: item.ID, RequesterID: requesterID, Quantity: 3}

	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.RequestStatusChanged{Request: request, Item: item, Status: enums.RequestStatusApproved},
	})
	require.NoError(t, err)
	require.Len(t, repo.rows, 1)
	assert.Equal(t, requesterID, repo.rows[0].RecipientID)
	assert.Equal(t, "Your request for 3 Copy Paper has been approved", repo.rows[0].Message)
	require.NotNil(t, repo.rows[0].Link)
	assert.Equal(t, "/requests/"+request.ID.String(), *repo.rows[0].Link)

	repo.rows = nil
	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.RequestStatusChanged{Request: request, Item: item, Status: enums.RequestStatusRejected},
	})
	require.NoError(t, err)
	require.Len(t, repo.rows, 1)
	assert.Equal(t, "Your request for 3 Copy Paper has been rejected", repo.rows[0].Message)
}

func TestDispatchAllocationAssigned(t *testing.T) {
	repo := &stubNotificationsRepo{}
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{}, nil, nil, nil)
	require.NoError(t, err)

	item := dispatcherItem()
	teacherID := uuid.New()
	allocation := models.TeacherAllocation{ID: uuid.New(), TeacherID: teacherID, ItemID: item.ID, Quantity: 10}
	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.AllocationAssigned{Allocation: allocation, Item: item},
	})
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, teacherID, repo.rows[0].RecipientID)
	assert.Equal(t, "You've been assigned 10 Copy Paper", repo.rows[0].Message)
	require.NotNil(t, repo.rows[0].Link)
	assert.Equal(t, "/teacher-inventory/"+item.ID.String(), *repo.rows[0].Link)
}

func TestDispatchFailsClosedOnApproverLookup(t *testing.T) {
	repo := &stubNotificationsRepo{}
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{err: errors.New("users unavailable")}, nil, nil, nil)
	require.NoError(t, err)

	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.LowStockCrossed{Item: dispatcherItem()},
	})
	require.Error(t, err)
	assert.Empty(t, repo.rows)
}

func TestDispatchInvalidatesUnreadCounts(t *testing.T) {
	repo := &stubNotificationsRepo{}
	cache := newStubUnreadCache()
	teacherID := uuid.New()
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{}, cache, nil, nil)
	require.NoError(t, err)

	item := dispatcherItem()
	allocation := models.TeacherAllocation{ID: uuid.New(), TeacherID: teacherID, ItemID: item.ID, Quantity: 2}
	err = dispatcher.Dispatch(context.Background(), nil, []events.Event{
		events.AllocationLow{Item: item, Allocation: allocation},
	})
	require.NoError(t, err)
	require.Len(t, cache.invalidated, 1)
	assert.Equal(t, teacherID, cache.invalidated[0])
}

func TestDispatchNoEventsIsNoop(t *testing.T) {
	repo := &stubNotificationsRepo{}
	dispatcher, err := NewDispatcher(repo, &stubApproverDirectory{}, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, dispatcher.Dispatch(context.Background(), nil, nil))
	assert.Empty(t, repo.rows)
}
