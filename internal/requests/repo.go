package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	"github.com/schoolstock/stockroom-backend/pkg/pagination"
)

// Repository exposes persistence helpers for fulfillment requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Request, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, status enums.RequestStatus, deciderID uuid.UUID, notes *string) error
	ListByRequester(ctx context.Context, params listRequestsParams) ([]models.Request, *pagination.Cursor, error)
	ListPending(ctx context.Context, params listRequestsParams) ([]models.Request, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a requests repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listRequestsParams struct {
	RequesterID uuid.UUID
	Status      *enums.RequestStatus
	Limit       int
	Cursor      *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate locks the request row so a decision can run exactly once.
func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) UpdateDecision(ctx context.Context, id uuid.UUID, status enums.RequestStatus, deciderID uuid.UUID, notes *string) error {
	updates := map[string]any{
		"status":     status,
		"decider_id": deciderID,
		"updated_at": time.Now().UTC(),
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	return r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) ListByRequester(ctx context.Context, params listRequestsParams) ([]models.Request, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("requester_id = ?", params.RequesterID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	return r.page(query, params)
}

func (r *repositoryImpl) ListPending(ctx context.Context, params listRequestsParams) ([]models.Request, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("status = ?", enums.RequestStatusPending)
	return r.page(query, params)
}

func (r *repositoryImpl) page(query *gorm.DB, params listRequestsParams) ([]models.Request, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Request
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}
