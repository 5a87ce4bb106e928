package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/api/responses"
	"github.com/angelmondragon/matcycle-backend/api/validators"
	"github.com/angelmondragon/matcycle-backend/internal/cycles"
	"github.com/angelmondragon/matcycle-backend/internal/history"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/types"
)

type cycleView struct {
	models.Cycle
	Location      *types.Location `json:"location,omitempty"`
	TrialDeadline *time.Time      `json:"trialDeadline,omitempty"`
}

func newCycleView(c *models.Cycle) *cycleView {
	if c == nil {
		return nil
	}
	return &cycleView{
		Cycle:         *c,
		Location:      c.Location(),
		TrialDeadline: c.TrialDeadline(cycles.TrialWindow),
	}
}

func newCycleViews(list []models.Cycle) []cycleView {
	out := make([]cycleView, 0, len(list))
	for i := range list {
		out = append(out, *newCycleView(&list[i]))
	}
	return out
}

type startCycleRequest struct {
	AssetID uuid.UUID `json:"assetId" validate:"required"`
}

// CyclesStart opens a new cycle on an available asset.
func CyclesStart(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cycle manager"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload startCycleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cycle, err := svc.Start(r.Context(), payload.AssetID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCycleView(cycle))
	}
}

// CyclesList filters cycles by asset, company and status.
func CyclesList(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cycle manager"))
			return
		}
		page, err := pageFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assetID, err := validators.ParseQueryUUID(r, "assetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		companyID, err := validators.ParseQueryUUID(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := cycles.Filter{
			AssetID:   assetID,
			CompanyID: companyID,
			Limit:     page.Limit,
			Offset:    page.Offset,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				status, err := enums.ParseCycleStatus(part)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
					return
				}
				filter.Statuses = append(filter.Statuses, status)
			}
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, newCycleViews(list), len(list), page)
	}
}

// CyclesGet returns one cycle with its trial deadline.
func CyclesGet(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cycle manager"))
			return
		}
		id, err := pathUUID(r, "cycleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cycle, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if cycle == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found"))
			return
		}
		responses.WriteSuccess(w, newCycleView(cycle))
	}
}

type assignRequest struct {
	CompanyID uuid.UUID       `json:"companyId" validate:"required"`
	ContactID *uuid.UUID      `json:"contactId,omitempty"`
	StartAt   *time.Time      `json:"startAt,omitempty"`
	Location  *types.Location `json:"location,omitempty" validate:"omitempty"`
}

// CyclesAssign places a clean cycle on trial.
func CyclesAssign(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return cycleMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Cycle, error) {
		var payload assignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AssignToTrial(r.Context(), id, cycles.AssignInput{
			CompanyID: payload.CompanyID,
			ContactID: payload.ContactID,
			StartAt:   payload.StartAt,
			Location:  payload.Location,
		}, actorID)
	})
}

// CyclesSoil records the customer returning the asset dirty.
func CyclesSoil(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return cycleMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Cycle, error) {
		return svc.MarkSoiled(r.Context(), id, actorID)
	})
}

type contractRequest struct {
	Frequency string `json:"frequency" validate:"required"`
}

// CyclesSignContract converts a trial into a service contract.
func CyclesSignContract(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return cycleMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Cycle, error) {
		var payload contractRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		frequency, err := enums.ParseContractFrequency(payload.Frequency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frequency")
		}
		return svc.SignContract(r.Context(), id, frequency, actorID)
	})
}

// CyclesRequestPickup queues a dirty cycle for a driver.
func CyclesRequestPickup(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return cycleMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Cycle, error) {
		return svc.RequestPickup(r.Context(), id, actorID)
	})
}

// CyclesCancelPickup returns a queued cycle to dirty.
func CyclesCancelPickup(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return cycleMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Cycle, error) {
		return svc.CancelPickup(r.Context(), id, actorID)
	})
}

type extendRequest struct {
	Days int `json:"days,omitempty"`
}

// CyclesExtend shifts the trial window. An empty body extends by the default.
func CyclesExtend(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return cycleMutation(svc, logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Cycle, error) {
		var payload extendRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.Extend(r.Context(), id, payload.Days, actorID)
	})
}

// CyclesComplete closes a cycle and frees its asset. Completing twice succeeds
// with skipped set.
func CyclesComplete(svc cycles.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cycle manager"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "cycleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Complete(r.Context(), id, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"cycle":   newCycleView(result.Cycle),
			"skipped": result.Skipped,
		})
	}
}

// CyclesHistory lists the audit trail of one cycle, oldest first.
func CyclesHistory(svc history.Trail, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("history trail"))
			return
		}
		id, err := pathUUID(r, "cycleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.ForCycle(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

func cycleMutation(svc cycles.Manager, logg *logger.Logger, apply func(*http.Request, uuid.UUID, uuid.UUID) (*models.Cycle, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cycle manager"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "cycleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cycle, err := apply(r, id, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCycleView(cycle))
	}
}
