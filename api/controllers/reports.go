package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/matcycle-backend/api/responses"
	"github.com/angelmondragon/matcycle-backend/api/validators"
	"github.com/angelmondragon/matcycle-backend/internal/history"
	"github.com/angelmondragon/matcycle-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
)

// ReportsCycleCounts breaks cycles down by status for a company or an owner.
func ReportsCycleCounts(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reports"))
			return
		}
		companyID, err := validators.ParseQueryUUID(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := validators.ParseQueryUUID(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counts, err := svc.CycleCounts(r.Context(), reports.CountFilter{CompanyID: companyID, OwnerID: ownerID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

// ReportsOverdue lists trial cycles older than thresholdDays.
func ReportsOverdue(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reports"))
			return
		}
		if strings.TrimSpace(r.URL.Query().Get("thresholdDays")) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "thresholdDays is required").WithDetails(map[string]any{"field": "thresholdDays"}))
			return
		}
		threshold, err := validators.ParseQueryInt(r, "thresholdDays", 0, 0, 3650)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := validators.ParseQueryUUID(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pageFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Overdue(r.Context(), reports.OverdueFilter{
			ThresholdDays: threshold,
			OwnerID:       ownerID,
			Limit:         page.Limit,
			Offset:        page.Offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, list, len(list), page)
	}
}

// ReportsTurnaround averages the days from pickup request to completion.
func ReportsTurnaround(svc history.Trail, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("history trail"))
			return
		}
		companyID, err := validators.ParseQueryUUID(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := validators.ParseQueryUUID(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Turnaround(r.Context(), history.TurnaroundFilter{CompanyID: companyID, OwnerID: ownerID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
