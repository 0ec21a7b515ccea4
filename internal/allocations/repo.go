package allocations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolstock/stockroom-backend/pkg/db/models"
)

// Repository exposes persistence helpers for teacher allocations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, allocation *models.TeacherAllocation) error
	FindByTeacherAndItem(ctx context.Context, teacherID, itemID uuid.UUID) (*models.TeacherAllocation, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherAllocation, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an allocations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Upsert inserts the allocation or replaces the quantity for an existing
// (teacher, item) pair.
func (r *repositoryImpl) Upsert(ctx context.Context, allocation *models.TeacherAllocation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "teacher_id"}, {Name: "item_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   allocation.Quantity,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(allocation).Error
}

func (r *repositoryImpl) FindByTeacherAndItem(ctx context.Context, teacherID, itemID uuid.UUID) (*models.TeacherAllocation, error) {
	var allocation models.TeacherAllocation
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND item_id = ?", teacherID, itemID).
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repositoryImpl) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherAllocation, error) {
	var allocations []models.TeacherAllocation
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at ASC").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

func (r *repositoryImpl) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.TeacherAllocation, error) {
	var allocations []models.TeacherAllocation
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}
