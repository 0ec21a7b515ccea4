package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/events"
	"github.com/schoolstock/stockroom-backend/internal/inventory"
	"github.com/schoolstock/stockroom-backend/pkg/db"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
	"github.com/schoolstock/stockroom-backend/pkg/metrics"
	"github.com/schoolstock/stockroom-backend/pkg/pagination"
)

// Service exposes the request workflow: submission and decision.
type Service interface {
	Create(ctx context.Context, requesterID uuid.UUID, input CreateInput) (*models.Request, error)
	CreateBatch(ctx context.Context, requesterID uuid.UUID, inputs []CreateInput) ([]models.Request, error)
	Decide(ctx context.Context, decider Decider, requestID uuid.UUID, input DecideInput) (*models.Request, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Request, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, params ListParams) (*ListResult, error)
	ListPending(ctx context.Context, params ListParams) (*ListResult, error)
}

// CreateInput is one requested line: an item and a quantity.
type CreateInput struct {
	ItemID   uuid.UUID
	Quantity int
	Notes    *string
}

// Decider identifies who is deciding and with what role.
type Decider struct {
	UserID uuid.UUID
	Role   enums.Role
}

// DecideInput carries the approve/reject choice and optional notes.
type DecideInput struct {
	Decision enums.RequestDecision
	Notes    *string
}

// ListParams configures request list pagination.
type ListParams struct {
	Status *enums.RequestStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of requests and the cursor for the next.
type ListResult struct {
	Items  []models.Request `json:"items"`
	Cursor string           `json:"cursor"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, evts []events.Event) error
}

type stockAdjuster interface {
	AdjustInTx(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*inventory.AdjustOutcome, error)
	GetItemInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Item, error)
}

type service struct {
	repo         Repository
	dbClient     txRunner
	stock        stockAdjuster
	dispatcher   eventDispatcher
	metrics      *metrics.CoreMetrics
	maxRetries   uint64
	retryBackoff time.Duration
}

// NewService constructs the request workflow service.
func NewService(repo Repository, dbClient txRunner, stock stockAdjuster, dispatcher eventDispatcher, coreMetrics *metrics.CoreMetrics, maxRetries int, retryBackoff time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
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
		stock:        stock,
		dispatcher:   dispatcher,
		metrics:      coreMetrics,
		maxRetries:   uint64(maxRetries),
		retryBackoff: retryBackoff,
	}, nil
}

// Create submits a single pending request. Availability is not checked here;
// stock is only verified and deducted when an approver decides.
func (s *service) Create(ctx context.Context, requesterID uuid.UUID, input CreateInput) (*models.Request, error) {
	created, err := s.CreateBatch(ctx, requesterID, []CreateInput{input})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// CreateBatch submits several requests in one transaction. Any invalid line
// rejects the whole batch.
func (s *service) CreateBatch(ctx context.Context, requesterID uuid.UUID, inputs []CreateInput) ([]models.Request, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester id required")
	}
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one request line required")
	}
	for i, input := range inputs {
		if input.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: item id required", i+1))
		}
		if input.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
	}

	var created []models.Request
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var evts []events.Event
		created = created[:0]

		for _, input := range inputs {
			item, err := s.stock.GetItemInTx(ctx, tx, input.ItemID)
			if err != nil {
				return err
			}

			request := &models.Request{
				ID:          uuid.New(),
				ItemID:      item.ID,
				RequesterID: requesterID,
				Quantity:    input.Quantity,
				Status:      enums.RequestStatusPending,
				Notes:       input.Notes,
			}
			if err := repo.Create(ctx, request); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating request")
			}
			created = append(created, *request)
			evts = append(evts, events.NewRequestCreated{Request: *request, Item: *item})
		}
		return s.dispatcher.Dispatch(ctx, tx, evts)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Decide resolves a pending request. Approval deducts stock atomically with
// the status flip; if the deduction fails nothing changes and the request
// stays pending.
func (s *service) Decide(ctx context.Context, decider Decider, requestID uuid.UUID, input DecideInput) (*models.Request, error) {
	if decider.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decider id required")
	}
	if !decider.Role.CanDecideRequests() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot decide requests")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}

	var decided *models.Request
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			result, err := s.decideInTx(ctx, tx, decider, requestID, input)
			if err != nil {
				return err
			}
			decided = result
			return nil
		})
		if txErr != nil && db.IsLockConflict(txErr) {
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err != nil {
		s.recordDecision(input.Decision, "error")
		if db.IsLockConflict(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "request decision contention, please retry")
		}
		return nil, err
	}

	s.recordDecision(input.Decision, "success")
	return decided, nil
}

func (s *service) decideInTx(ctx context.Context, tx *gorm.DB, decider Decider, requestID uuid.UUID, input DecideInput) (*models.Request, error) {
	repo := s.repo.WithTx(tx)

	request, err := repo.FindByIDForUpdate(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, err
	}
	if request.Status != enums.RequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request has already been decided").
			WithDetails(map[string]any{"status": request.Status})
	}

	var evts []events.Event
	var item *models.Item
	newStatus := enums.RequestStatusRejected
	if input.Decision == enums.RequestDecisionApprove {
		newStatus = enums.RequestStatusApproved
		outcome, err := s.stock.AdjustInTx(ctx, tx, inventory.AdjustInput{
			ItemID:    request.ItemID,
			Delta:     -request.Quantity,
			Reason:    "request approved",
			ActorID:   &decider.UserID,
			RequestID: &request.ID,
		})
		if err != nil {
			return nil, err
		}
		evts = append(evts, outcome.Events...)
		item = outcome.Item
	} else {
		loaded, err := s.stock.GetItemInTx(ctx, tx, request.ItemID)
		if err != nil {
			return nil, err
		}
		item = loaded
	}

	if err := repo.UpdateDecision(ctx, request.ID, newStatus, decider.UserID, input.Notes); err != nil {
		return nil, err
	}
	request.Status = newStatus
	request.DeciderID = &decider.UserID
	if input.Notes != nil {
		request.Notes = input.Notes
	}

	evts = append(evts, events.RequestStatusChanged{Request: *request, Item: *item, Status: newStatus})

	if err := s.dispatcher.Dispatch(ctx, tx, evts); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading request")
	}
	return request, nil
}

func (s *service) ListByRequester(ctx context.Context, requesterID uuid.UUID, params ListParams) (*ListResult, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByRequester(ctx, listRequestsParams{
		RequesterID: requesterID,
		Status:      params.Status,
		Limit:       params.Limit,
		Cursor:      cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing requests")
	}
	return listResult(rows, next), nil
}

func (s *service) ListPending(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListPending(ctx, listRequestsParams{
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing pending requests")
	}
	return listResult(rows, next), nil
}

func listResult(rows []models.Request, next *pagination.Cursor) *ListResult {
	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result
}

func (s *service) recordDecision(decision enums.RequestDecision, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncDecision(string(decision), result)
}
