package allocations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
)

// Service manages per-teacher allocations of stockroom items.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*models.TeacherAllocation, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherAllocation, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error)
}

// AssignInput sets a teacher's allocation of an item to the given quantity.
type AssignInput struct {
	TeacherID uuid.UUID
	ItemID    uuid.UUID
	Quantity  int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, evts []events.Event) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type itemLoader interface {
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

type service struct {
	repo       Repository
	dbClient   txRunner
	users      userLoader
	items      itemLoader
	dispatcher eventDispatcher
}

// NewService constructs the allocation service.
func NewService(repo Repository, dbClient txRunner, users userLoader, items itemLoader, dispatcher eventDispatcher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("allocations repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("event dispatcher required")
	}
	return &service{
		repo:       repo,
		dbClient:   dbClient,
		users:      users,
		items:      items,
		dispatcher: dispatcher,
	}, nil
}

// Assign upserts the (teacher, item) allocation and notifies the teacher.
// Allocations track what a teacher holds; they never touch the shared pool.
func (s *service) Assign(ctx context.Context, input AssignInput) (*models.TeacherAllocation, error) {
	if input.TeacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "allocation quantity must be positive")
	}

	teacher, err := s.users.FindByID(ctx, input.TeacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "teacher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading teacher")
	}
	if teacher.Role != enums.RoleTeacher {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocations can only be assigned to teachers")
	}

	item, err := s.items.GetItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	allocation := &models.TeacherAllocation{
		ID:        uuid.New(),
		TeacherID: input.TeacherID,
		ItemID:    input.ItemID,
		Quantity:  input.Quantity,
	}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Upsert(ctx, allocation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assigning allocation")
		}
		stored, err := repo.FindByTeacherAndItem(ctx, input.TeacherID, input.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading allocation")
		}
		allocation = stored
		return s.dispatcher.Dispatch(ctx, tx, []events.Event{
			events.AllocationAssigned{Allocation: *allocation, Item: *item},
		})
	})
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

func (s *service) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherAllocation, error) {
	if teacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	}
	allocations, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing allocations")
	}
	return allocations, nil
}

func (s *service) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	allocations, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing allocations")
	}
	return allocations, nil
}
