package inventory

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

// Repository exposes persistence helpers for items, the stock ledger, and the
// allocation rows the threshold watcher reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error)
	List(ctx context.Context) ([]models.Item, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, status enums.ItemStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountReferences(ctx context.Context, itemID uuid.UUID) (int64, error)
	AppendLogEntry(ctx context.Context, entry *models.StockLogEntry) error
	ListLogEntries(ctx context.Context, params listLedgerParams) ([]models.StockLogEntry, *pagination.Cursor, error)
	SumLogDeltas(ctx context.Context, itemID uuid.UUID) (int64, error)
	ListAllocationsByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listLedgerParams struct {
	ItemID uuid.UUID
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDForUpdate takes a row-level exclusive lock so concurrent mutations
// of the same item serialize at the database.
func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repositoryImpl) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, status enums.ItemStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   quantity,
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Item{}, "id = ?", id).Error
}

// CountReferences counts the open requests and allocations still pointing at
// the item. Items with live references must not be deleted.
func (r *repositoryImpl) CountReferences(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var pendingRequests int64
	if err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("item_id = ? AND status = ?", itemID, enums.RequestStatusPending).
		Count(&pendingRequests).Error; err != nil {
		return 0, err
	}

	var allocations int64
	if err := r.db.WithContext(ctx).
		Model(&models.TeacherAllocation{}).
		Where("item_id = ?", itemID).
		Count(&allocations).Error; err != nil {
		return 0, err
	}
	return pendingRequests + allocations, nil
}

func (r *repositoryImpl) AppendLogEntry(ctx context.Context, entry *models.StockLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) ListLogEntries(ctx context.Context, params listLedgerParams) ([]models.StockLogEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.StockLogEntry{}).
		Where("item_id = ?", params.ItemID)
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.StockLogEntry
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		entries = entries[:normalized]
		last := entries[normalized-1]
		return entries, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return entries, nil, nil
}

// SumLogDeltas returns the cumulative delta over the item's whole ledger. It
// exists for consistency checks: the sum must equal the live quantity.
func (r *repositoryImpl) SumLogDeltas(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var total *int64
	if err := r.db.WithContext(ctx).
		Model(&models.StockLogEntry{}).
		Where("item_id = ?", itemID).
		Select("SUM(delta)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repositoryImpl) ListAllocationsByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error) {
	var allocations []models.TeacherAllocation
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}
