package askings

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

const maxBodyBytes = 1 << 20

// Messages returned in the "msg" field. Deployed clients match on them.
const (
	msgCreateFailed    = "Error creating asking"
	msgListFailed      = "Error user"
	msgNoPermission    = "Logged user has no permissions"
	msgNotMentor       = "Unauthorized"
	msgNotFound        = "Asking not found"
	msgUpdateFailed    = "Error updating asking"
	msgFetchFailed     = "Error fetching asking details"
	msgDeleteFailed    = "Error deleting asking"
	msgDeleted         = "Asking deleted successfully"
	msgNoAskings       = "No askings found"
	msgNoTokenProvided = "No token provided"
)

// Handler exposes the Service over HTTP. Gated routes expect the caller to
// have been attached by auth.RequireCaller.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: logutil.NoopIfNil(log)}
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	MentorID    string `json:"mentor_id"`
}

type transitionRequest struct {
	State *string `json:"state"`
}

type messageResponse struct {
	Msg string `json:"msg"`
}

// Create handles POST /asking.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonBadRequest, msgCreateFailed, err.Error())
		return
	}
	if req.StartDate == "" {
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonMissingField, msgCreateFailed, "start_date is required")
		return
	}
	start, err := ParseTime(req.StartDate)
	if err != nil {
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonInvalidField, msgCreateFailed, "start_date: "+err.Error())
		return
	}

	a, err := h.svc.Create(r.Context(), auth.CallerFromContext(r.Context()), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   start,
		MentorID:    req.MentorID,
	})
	if err != nil {
		h.writeError(w, r, err, msgCreateFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, a)
}

// ListByMentor handles GET /askings/mentor/{mentor_id}.
func (h *Handler) ListByMentor(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListByMentor(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "mentor_id"))
	if err != nil {
		h.writeError(w, r, err, msgListFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, items)
}

// ListByUser handles GET /askings/user/{user_id}.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListByUser(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, r, err, msgListFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, items)
}

// Transition handles PATCH /accept-asking/{id}.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonBadRequest, msgUpdateFailed, err.Error())
		return
	}
	if req.State == nil {
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonMissingField, msgUpdateFailed, "state is required")
		return
	}

	a, err := h.svc.Transition(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"), *req.State)
	if err != nil {
		h.writeError(w, r, err, msgUpdateFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, a)
}

// Update handles PATCH /asking/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := decodeBody(r, &patch); err != nil {
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonBadRequest, msgUpdateFailed, err.Error())
		return
	}

	a, err := h.svc.Update(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err, msgUpdateFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, a)
}

// Get handles GET /asking/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, msgFetchFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}

// Delete handles DELETE /asking/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.CallerFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, msgDeleteFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, messageResponse{Msg: msgDeleted})
}

// ListAll handles GET /asking. It is public.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err, msgFetchFailed)
		return
	}
	api.WriteJSON(w, http.StatusOK, items)
}

// writeError maps engine errors onto the response envelope. failure is the
// message used for validation and storage errors of the operation.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, failure string) {
	var perr *PersistenceError
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, msgNoTokenProvided)
	case errors.Is(err, ErrValidation):
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ReasonInvalidField, failure, err.Error())
	case errors.Is(err, ErrNotMentor):
		api.WriteForbidden(w, api.ReasonNotMentor, msgNotMentor)
	case errors.Is(err, ErrForbidden):
		api.WriteForbidden(w, api.ReasonForbidden, msgNoPermission)
	case errors.Is(err, ErrNotFound):
		api.WriteNotFound(w, api.ReasonNotFound, msgNotFound)
	case errors.Is(err, ErrEmptyResult):
		api.WriteNotFound(w, api.ReasonEmptyResult, msgNoAskings)
	case errors.As(err, &perr):
		h.logger(r).Error("asking store failure", "op", perr.Op, "error", perr.Err)
		api.WriteInternalError(w, api.ReasonPersistenceError, failure, perr.Err.Error())
	default:
		h.logger(r).Error("asking operation failed", "error", err)
		api.WriteInternalError(w, api.ReasonInternalError, failure, err.Error())
	}
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(r.Context()); ok {
		return l
	}
	return h.log
}

// decodeBody decodes a JSON body. An empty body decodes to the zero value.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
