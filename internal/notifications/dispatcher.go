package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	"github.com/schoolstock/stockroom-backend/pkg/logger"
	"github.com/schoolstock/stockroom-backend/pkg/metrics"
)

type approverDirectory interface {
	ListApproverIDs(ctx context.Context) ([]uuid.UUID, error)
}

type unreadCounterCache interface {
	InvalidateUnreadCount(ctx context.Context, recipientID uuid.UUID) error
}

// Dispatcher fans events out into notification rows inside the caller's
// transaction. A persistence failure aborts the whole mutation; cache
// invalidation is best effort and never fails the transaction.
type Dispatcher struct {
	repo      Repository
	approvers approverDirectory
	cache     unreadCounterCache
	metrics   *metrics.CoreMetrics
	log       *logger.Logger
}

// NewDispatcher wires the dispatcher dependencies. The cache and metrics are
// optional.
func NewDispatcher(repo Repository, approvers approverDirectory, cache unreadCounterCache, coreMetrics *metrics.CoreMetrics, log *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if approvers == nil {
		return nil, fmt.Errorf("approver directory required")
	}
	return &Dispatcher{
		repo:      repo,
		approvers: approvers,
		cache:     cache,
		metrics:   coreMetrics,
		log:       log,
	}, nil
}

// Dispatch persists one notification row per (event, recipient) pair.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	repo := d.repo.WithTx(tx)
	touched := make(map[uuid.UUID]struct{})

	var errs error
	for _, evt := range evts {
		rows, err := d.rowsFor(ctx, evt)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for i := range rows {
			row := &rows[i]
			if err := repo.Create(ctx, row); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("persisting %s notification: %w", row.Type, err))
				continue
			}
			touched[row.RecipientID] = struct{}{}
			if d.metrics != nil {
				d.metrics.IncNotification(string(row.Type))
			}
		}
	}
	if errs != nil {
		return errs
	}

	d.invalidateCounts(ctx, touched)
	return nil
}

func (d *Dispatcher) rowsFor(ctx context.Context, evt events.Event) ([]models.Notification, error) {
	switch e := evt.(type) {
	case events.LowStockCrossed:
		approvers, err := d.approvers.ListApproverIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving low stock recipients: %w", err)
		}
		message := fmt.Sprintf("%s is running low. Current quantity: %d (Threshold: %d)",
			e.Item.Name, e.Item.Quantity, e.Item.LowStockThreshold)
		link := itemLink(e.Item.ID)
		rows := make([]models.Notification, 0, len(approvers))
		for _, recipientID := range approvers {
			rows = append(rows, notificationRow(recipientID, enums.NotificationTypeLowStock, message, link, enums.EntityKindItem, e.Item.ID))
		}
		return rows, nil

	case events.AllocationLow:
		message := fmt.Sprintf("Your assigned %s is running low. Current quantity: %d",
			e.Item.Name, e.Allocation.Quantity)
		return []models.Notification{
			notificationRow(e.Allocation.TeacherID, enums.NotificationTypeLowStock, message, allocationLink(e.Item.ID), enums.EntityKindAllocation, e.Allocation.ID),
		}, nil

	case events.NewRequestCreated:
		approvers, err := d.approvers.ListApproverIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving new request recipients: %w", err)
		}
		message := fmt.Sprintf("New request for %s (Quantity: %d)", e.Item.Name, e.Request.Quantity)
		link := requestLink(e.Request.ID)
		rows := make([]models.Notification, 0, len(approvers))
		for _, recipientID := range approvers {
			rows = append(rows, notificationRow(recipientID, enums.NotificationTypeNewRequest, message, link, enums.EntityKindRequest, e.Request.ID))
		}
		return rows, nil

	case events.RequestStatusChanged:
		message := fmt.Sprintf("Your request for %d %s has been %s",
			e.Request.Quantity, e.Item.Name, e.Status)
		return []models.Notification{
			notificationRow(e.Request.RequesterID, enums.NotificationTypeRequestStatus, message, requestLink(e.Request.ID), enums.EntityKindRequest, e.Request.ID),
		}, nil

	case events.AllocationAssigned:
		message := fmt.Sprintf("You've been assigned %d %s", e.Allocation.Quantity, e.Item.Name)
		return []models.Notification{
			notificationRow(e.Allocation.TeacherID, enums.NotificationTypeRequestStatus, message, allocationLink(e.Item.ID), enums.EntityKindAllocation, e.Allocation.ID),
		}, nil

	default:
		return nil, fmt.Errorf("unhandled event type %T", evt)
	}
}

// Frontend deep links for each notification family.
func itemLink(itemID uuid.UUID) string       { return "/inventory/" + itemID.String() }
func allocationLink(itemID uuid.UUID) string { return "/teacher-inventory/" + itemID.String() }
func requestLink(requestID uuid.UUID) string { return "/requests/" + requestID.String() }

func notificationRow(recipientID uuid.UUID, notifType enums.NotificationType, message, link string, kind enums.EntityKind, entityID uuid.UUID) models.Notification {
	id := entityID
	return models.Notification{
		RecipientID: recipientID,
		Type:        notifType,
		Message:     message,
		Link:        &link,
		EntityKind:  &kind,
		EntityID:    &id,
	}
}

func (d *Dispatcher) invalidateCounts(ctx context.Context, recipients map[uuid.UUID]struct{}) {
	if d.cache == nil {
		return
	}
	for recipientID := range recipients {
		if err := d.cache.InvalidateUnreadCount(ctx, recipientID); err != nil && d.log != nil {
			d.log.Warn(d.log.WithUserID(ctx, recipientID.String()), "unread count invalidation failed")
		}
	}
}
