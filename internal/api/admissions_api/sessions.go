package admissions_api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/broker/messages"
	"github.com/kidzo/gatesync/internal/models"
)

type sessionStartRequest struct {
	EstablishmentID string          `json:"establishmentId"`
	ActivityName    string          `json:"activityName"`
	StartTime       time.Time       `json:"startTime"`
	Guests          json.RawMessage `json:"guests,omitempty"`
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	sess, err := a.sessions.Start(r.Context(), models.SessionStartInput{
		EstablishmentID: req.EstablishmentID,
		ActivityName:    req.ActivityName,
		StartTime:       req.StartTime,
		Guests:          req.Guests,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) stopSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndTime time.Time `json:"endTime"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
			return
		}
	}
	sess, err := a.sessions.Stop(r.Context(), chi.URLParam(r, "sessionID"), req.EndTime)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type sessionUpdateRequest struct {
	ActivityName *string         `json:"activityName,omitempty"`
	EndTime      *time.Time      `json:"endTime,omitempty"`
	Status       *string         `json:"status,omitempty"`
	Guests       json.RawMessage `json:"guests,omitempty"`
}

func (a *API) updateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	sess, err := a.sessions.Update(r.Context(), chi.URLParam(r, "sessionID"), models.SessionUpdateInput{
		ActivityName: req.ActivityName,
		EndTime:      req.EndTime,
		Status:       req.Status,
		Guests:       req.Guests,
	})
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	list, err := a.sessions.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) addSessionCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	sc, err := a.sessions.AddCode(r.Context(), chi.URLParam(r, "sessionID"), req.Code)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (a *API) listSessionCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := a.sessions.ListCodes(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

func (a *API) deleteSessionCode(w http.ResponseWriter, r *http.Request) {
	codeID, err := strconv.ParseUint(chi.URLParam(r, "codeID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("codeId must be numeric"))
		return
	}
	err = a.sessions.DeleteCode(r.Context(), chi.URLParam(r, "sessionID"), codeID)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) replay(w http.ResponseWriter, r *http.Request) {
	var batch messages.ReplayBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	res := a.reconciler.Replay(r.Context(), batch)
	writeJSON(w, http.StatusOK, res)
}
