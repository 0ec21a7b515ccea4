package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom-backend/api/middleware"
	"github.com/schoolstock/stockroom-backend/api/responses"
	"github.com/schoolstock/stockroom-backend/api/validators"
	"github.com/schoolstock/stockroom-backend/internal/allocations"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
	"github.com/schoolstock/stockroom-backend/pkg/logger"
)

type assignAllocationRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	ItemID    string `json:"item_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// AssignAllocation sets a teacher's allocation of an item. Repeating the
// assignment replaces the quantity rather than adding to it.
func AssignAllocation(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "allocations service unavailable"))
			return
		}

		var payload assignAllocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		teacherID, err := uuid.Parse(payload.TeacherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid teacher id"))
			return
		}
		itemID, err := uuid.Parse(payload.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		allocation, err := svc.Assign(r.Context(), allocations.AssignInput{
			TeacherID: teacherID,
			ItemID:    itemID,
			Quantity:  payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, allocation)
	}
}

// ListAllocations returns the caller's allocations. Approvers may scope the
// list to another teacher or to an item via query parameters.
func ListAllocations(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "allocations service unavailable"))
			return
		}

		callerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, _ := enums.ParseRole(middleware.RoleFromContext(r.Context()))

		if itemID := strings.TrimSpace(r.URL.Query().Get("item_id")); itemID != "" {
			if !role.CanDecideRequests() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "approver role required"))
				return
			}
			id, parseErr := uuid.Parse(itemID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid item id"))
				return
			}
			rows, listErr := svc.ListByItem(r.Context(), id)
			if listErr != nil {
				responses.WriteError(r.Context(), logg, w, listErr)
				return
			}
			responses.WriteSuccess(w, rows)
			return
		}

		teacherID := callerID
		if raw := strings.TrimSpace(r.URL.Query().Get("teacher_id")); raw != "" {
			id, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid teacher id"))
				return
			}
			if id != callerID && !role.CanDecideRequests() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "approver role required"))
				return
			}
			teacherID = id
		}

		rows, err := svc.ListByTeacher(r.Context(), teacherID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
