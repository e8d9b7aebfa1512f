package admissions_api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/models"
)

func (a *API) getTerminalConfig(w http.ResponseWriter, r *http.Request) {
	hostname := chi.URLParam(r, "hostname")
	tc, err := a.configs.GetTerminalConfig(r.Context(), hostname)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

type terminalConfigRequest struct {
	Config    json.RawMessage `json:"config"`
	Published bool            `json:"published"`
}

func (a *API) putTerminalConfig(w http.ResponseWriter, r *http.Request) {
	var req terminalConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	if len(req.Config) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("config is required"))
		return
	}
	tc, err := a.configs.UpsertTerminalConfig(r.Context(), chi.URLParam(r, "hostname"), req.Config, req.Published)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tc)
}
