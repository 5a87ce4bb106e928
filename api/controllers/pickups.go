package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/api/responses"
	"github.com/angelmondragon/matcycle-backend/api/validators"
	"github.com/angelmondragon/matcycle-backend/internal/pickups"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
)

const (
	driverMaxLen = 120
	notesMaxLen  = 2000
)

type createBatchRequest struct {
	CycleIDs       []uuid.UUID `json:"cycleIds" validate:"required,min=1"`
	ScheduledDate  *time.Time  `json:"scheduledDate,omitempty"`
	AssignedDriver *string     `json:"assignedDriver,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
}

func (r createBatchRequest) toInput() pickups.CreateBatchInput {
	return pickups.CreateBatchInput{
		CycleIDs:       r.CycleIDs,
		ScheduledDate:  r.ScheduledDate,
		AssignedDriver: validators.OptionalString(r.AssignedDriver, driverMaxLen),
		Notes:          validators.OptionalString(r.Notes, notesMaxLen),
	}
}

// PickupsCreate groups cycles into a pending batch and queues each for pickup.
// A partial outcome answers 207 with the per-cycle report.
func PickupsCreate(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pickup orchestrator"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateBatch(r.Context(), payload.toInput(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PickupsList filters batches by status, driver and schedule window.
func PickupsList(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pickup orchestrator"))
			return
		}
		page, err := pageFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryTime(r, "scheduledFrom")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "scheduledTo")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := pickups.BatchFilter{
			ScheduledFrom: from,
			ScheduledTo:   to,
			Limit:         page.Limit,
			Offset:        page.Offset,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePickupBatchStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if driver := validators.SanitizeString(r.URL.Query().Get("driver"), driverMaxLen); driver != "" {
			filter.AssignedDriver = &driver
		}

		list, err := svc.ListBatches(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, list, len(list), page)
	}
}

// PickupsGet returns a batch with its items.
func PickupsGet(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pickup orchestrator"))
			return
		}
		id, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetBatch(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if detail == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "pickup batch not found"))
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// PickupsStart moves a pending batch to in progress.
func PickupsStart(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return batchMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (any, error) {
		return svc.StartBatch(r.Context(), id, actorID)
	})
}

// PickupsComplete completes every cycle in the batch, then the batch itself.
func PickupsComplete(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return batchMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (any, error) {
		return svc.CompleteBatch(r.Context(), id, actorID)
	})
}

// PickupsCancel reverts every cycle to dirty and deletes the batch.
func PickupsCancel(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return batchMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (any, error) {
		return svc.CancelBatch(r.Context(), id, actorID)
	})
}

type toggleItemRequest struct {
	PickedUp *bool `json:"pickedUp" validate:"required"`
}

// PickupsToggleItem flips the picked-up flag of one batch item.
func PickupsToggleItem(svc pickups.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pickup orchestrator"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload toggleItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.ToggleItemPicked(r.Context(), itemID, *payload.PickedUp, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func batchMutation(svc pickups.Orchestrator, logg *logger.Logger, apply func(*http.Request, uuid.UUID, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pickup orchestrator"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := apply(r, id, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
