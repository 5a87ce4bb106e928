package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/pagination"
	"github.com/angelmondragon/matcycle-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WritePage writes one page of a list along with the window that produced it.
func WritePage(w http.ResponseWriter, data any, returned int, page pagination.Params) {
	page = page.Normalize()
	meta := &types.PageMeta{Limit: page.Limit, Offset: page.Offset, Returned: returned}
	if returned >= page.Limit {
		next := page.Offset + returned
		meta.NextOffset = &next
	}
	writeJSON(w, http.StatusOK, types.SuccessEnvelope{Data: data, Page: meta})
}

// WriteError maps err onto its status code. Partial failures keep the
// per-item report in details so callers can resume the remainder.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if m := typed.Message(); meta.ExposeMessage && m != "" {
		msg = m
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			dump := pkgerrors.Dump(err)
			logg.Warn(logg.WithFields(ctx, map[string]any{
				"error":       dump.TopMessage,
				"error_code":  dump.Code,
				"error_chain": dump.Chain,
			}), "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
