package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/api/responses"
	"github.com/angelmondragon/matcycle-backend/api/validators"
	"github.com/angelmondragon/matcycle-backend/internal/assets"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
)

type allocateRequest struct {
	OwnerID uuid.UUID `json:"ownerId" validate:"required"`
	Prefix  string    `json:"prefix" validate:"required,max=10"`
	Count   int       `json:"count" validate:"required,min=1"`
	Pending bool      `json:"pending"`
}

// AssetsAllocate issues a block of new asset codes for one owner.
func AssetsAllocate(svc assets.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("asset ledger"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload allocateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		issued, err := svc.Allocate(r.Context(), assets.AllocateInput{
			OwnerID: payload.OwnerID,
			Prefix:  payload.Prefix,
			Count:   payload.Count,
			Pending: payload.Pending,
			ActorID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issued)
	}
}

// AssetsList filters assets by owner, prefix and status.
func AssetsList(svc assets.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("asset ledger"))
			return
		}
		page, err := pageFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := validators.ParseQueryUUID(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := assets.Filter{
			OwnerID: ownerID,
			Prefix:  strings.TrimSpace(r.URL.Query().Get("prefix")),
			Limit:   page.Limit,
			Offset:  page.Offset,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseAssetStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, list, len(list), page)
	}
}

// AssetsGet returns one asset by id.
func AssetsGet(svc assets.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("asset ledger"))
			return
		}
		id, err := pathUUID(r, "assetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asset, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if asset == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found"))
			return
		}
		responses.WriteSuccess(w, asset)
	}
}

// AssetsByCode resolves a printed code to its asset.
func AssetsByCode(svc assets.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("asset ledger"))
			return
		}
		code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code is required"))
			return
		}
		asset, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if asset == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found").WithDetails(map[string]any{"code": code}))
			return
		}
		responses.WriteSuccess(w, asset)
	}
}

// AssetsReserve makes a pending code available.
func AssetsReserve(svc assets.Ledger, logg *logger.Logger) http.HandlerFunc {
	return assetStatusHandler(svc, logg, func(svc assets.Ledger, r *http.Request, id, actorID uuid.UUID) (any, error) {
		return svc.Reserve(r.Context(), id, actorID)
	})
}

// AssetsMarkPending holds an available code back.
func AssetsMarkPending(svc assets.Ledger, logg *logger.Logger) http.HandlerFunc {
	return assetStatusHandler(svc, logg, func(svc assets.Ledger, r *http.Request, id, actorID uuid.UUID) (any, error) {
		return svc.MarkPending(r.Context(), id, actorID)
	})
}

func assetStatusHandler(svc assets.Ledger, logg *logger.Logger, apply func(assets.Ledger, *http.Request, uuid.UUID, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("asset ledger"))
			return
		}
		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "assetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := apply(svc, r, id, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
