package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/pkg/db"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
	"github.com/schoolstock/stockroom-backend/pkg/metrics"
	"github.com/schoolstock/stockroom-backend/pkg/pagination"
)

// Service exposes item management and the stock ledger.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetItemInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, input AdjustInput) (*AdjustOutcome, error)
	AdjustInTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*AdjustOutcome, error)
	ListLedger(ctx context.Context, input ListLedgerInput) (*LedgerPage, error)
}

// CreateItemInput holds the validated payload for a new stockroom item.
type CreateItemInput struct {
	Name              string
	CategoryID        *uuid.UUID
	Quantity          int
	LowStockThreshold int
}

// AdjustInput describes one signed stock mutation. ActorRole is checked on
// the public entry point only; in-transaction callers validate upstream.
type AdjustInput struct {
	ItemID    uuid.UUID
	Delta     int
	Reason    string
	ActorID   *uuid.UUID
	ActorRole enums.Role
	RequestID *uuid.UUID
}

// AdjustOutcome reports the item state after a mutation, the ledger entry it
// produced, and whether the low-stock boundary was crossed.
type AdjustOutcome struct {
	Item            *models.Item
	LogEntry        *models.StockLogEntry
	LowStockCrossed bool
	Events          []events.Event
}

// ListLedgerInput filters a ledger history query.
type ListLedgerInput struct {
	ItemID uuid.UUID
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor string
}

// LedgerPage is one page of ledger history plus the cursor for the next.
type LedgerPage struct {
	Entries    []models.StockLogEntry
	NextCursor string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, evts []events.Event) error
}

type service struct {
	repo         Repository
	dbClient     txRunner
	dispatcher   eventDispatcher
	metrics      *metrics.CoreMetrics
	maxRetries   uint64
	retryBackoff time.Duration
}

// NewService constructs the inventory service.
func NewService(repo Repository, dbClient txRunner, dispatcher eventDispatcher, coreMetrics *metrics.CoreMetrics, maxRetries int, retryBackoff time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("event dispatcher required")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryBackoff <= 0 {
		retryBackoff = 25 * time.Millisecond
	}
	return &service{
		repo:         repo,
		dbClient:     dbClient,
		dispatcher:   dispatcher,
		metrics:      coreMetrics,
		maxRetries:   uint64(maxRetries),
		retryBackoff: retryBackoff,
	}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity cannot be negative")
	}
	if input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low stock threshold cannot be negative")
	}

	item := &models.Item{
		Name:              name,
		CategoryID:        input.CategoryID,
		Quantity:          input.Quantity,
		LowStockThreshold: input.LowStockThreshold,
		Status:            StatusFor(input.Quantity, input.LowStockThreshold),
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, item); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "an item with this name already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating item")
		}
		if item.Quantity > 0 {
			entry := &models.StockLogEntry{
				ItemID:        item.ID,
				Delta:         item.Quantity,
				QuantityAfter: item.Quantity,
				Reason:        "initial stock",
			}
			if err := repo.AppendLogEntry(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording initial stock")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}
	return item, nil
}

// GetItemInTx reads the item through the caller's transaction so collaborating
// services observe their own uncommitted writes.
func (s *service) GetItemInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Item, error) {
	item, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]models.Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing items")
	}
	return items, nil
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByIDForUpdate(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
		}
		refs, err := repo.CountReferences(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking item references")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item has pending requests or allocations").
				WithDetails(map[string]any{"references": refs})
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting item")
		}
		return nil
	})
}

// AdjustStock applies a signed delta inside its own transaction and dispatches
// the resulting events before commit. Lock conflicts are retried with
// exponential backoff up to the configured attempt count.
func (s *service) AdjustStock(ctx context.Context, input AdjustInput) (*AdjustOutcome, error) {
	if !input.ActorRole.CanDecideRequests() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only stock managers and admins may adjust stock")
	}

	start := time.Now()

	var outcome *AdjustOutcome
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			res, err := s.AdjustInTx(ctx, tx, input)
			if err != nil {
				return err
			}
			if err := s.dispatcher.Dispatch(ctx, tx, res.Events); err != nil {
				return err
			}
			outcome = res
			return nil
		})
		if txErr != nil && db.IsLockConflict(txErr) {
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err != nil {
		s.recordMutation("error", start)
		if db.IsLockConflict(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "stock mutation contention, please retry")
		}
		return nil, err
	}

	s.recordMutation("success", start)
	return outcome, nil
}

// AdjustInTx performs the locked read-modify-write within the caller's
// transaction. The caller owns commit and event dispatch.
func (s *service) AdjustInTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*AdjustOutcome, error) {
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "stock adjustment cannot be zero")
	}

	repo := s.repo.WithTx(tx)
	item, err := repo.FindByIDForUpdate(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}

	previousQty := item.Quantity
	newQty := previousQty + input.Delta
	if newQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for this adjustment").
			WithDetails(map[string]any{
				"available": previousQty,
				"requested": -input.Delta,
			})
	}

	newStatus := StatusFor(newQty, item.LowStockThreshold)
	if err := repo.UpdateQuantity(ctx, item.ID, newQty, newStatus); err != nil {
		return nil, err
	}
	item.Quantity = newQty
	item.Status = newStatus

	entry := &models.StockLogEntry{
		ItemID:        item.ID,
		Delta:         input.Delta,
		QuantityAfter: newQty,
		Reason:        input.Reason,
		ActorID:       input.ActorID,
		RequestID:     input.RequestID,
	}
	if err := repo.AppendLogEntry(ctx, entry); err != nil {
		return nil, err
	}

	outcome := &AdjustOutcome{
		Item:            item,
		LogEntry:        entry,
		LowStockCrossed: LowStockCrossed(previousQty, newQty, item.LowStockThreshold),
	}
	if outcome.LowStockCrossed {
		outcome.Events = append(outcome.Events, events.LowStockCrossed{Item: *item})
	}

	allocations, err := repo.ListAllocationsByItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	for _, allocation := range allocations {
		if AllocationRunningLow(allocation.Quantity, item.LowStockThreshold) {
			outcome.Events = append(outcome.Events, events.AllocationLow{Item: *item, Allocation: allocation})
		}
	}
	return outcome, nil
}

func (s *service) ListLedger(ctx context.Context, input ListLedgerInput) (*LedgerPage, error) {
	if _, err := s.GetItem(ctx, input.ItemID); err != nil {
		return nil, err
	}
	if input.From != nil && input.To != nil && input.To.Before(*input.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger range end precedes start")
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	entries, next, err := s.repo.ListLogEntries(ctx, listLedgerParams{
		ItemID: input.ItemID,
		From:   input.From,
		To:     input.To,
		Limit:  input.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ledger entries")
	}

	page := &LedgerPage{Entries: entries}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) recordMutation(result string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveMutation(result, time.Since(start))
}
