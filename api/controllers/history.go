package controllers

import (
	"net/http"

	"github.com/angelmondragon/matcycle-backend/api/responses"
	"github.com/angelmondragon/matcycle-backend/api/validators"
	"github.com/angelmondragon/matcycle-backend/internal/history"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
)

// HistoryByActor lists what one operator did, newest first.
func HistoryByActor(svc history.Trail, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("history trail"))
			return
		}
		actorID, err := pathUUID(r, "actorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pageFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.ByActor(r.Context(), history.ActorFilter{
			ActorID: actorID,
			From:    from,
			To:      to,
			Limit:   page.Limit,
			Offset:  page.Offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, events, len(events), page)
	}
}
