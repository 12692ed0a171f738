package tablet

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the diner, server and kitchen panels of one tablet session.
type Handler struct {
	engine *Engine
	logger apt.Logger
	config *apt.Config
	tlm    *telemetry.HTTP
}

func NewHandler(engine *Engine, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		engine: engine,
		logger: logger,
		config: config,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/statuses", h.ListStatuses)

	r.Route("/diner", func(r chi.Router) {
		r.Get("/dashboard", h.GetDashboard)
		r.Post("/sidebar", h.ToggleSidebar)
		r.Post("/notices", h.CreateNotice)
		r.Post("/notices/{id}/submit", h.SubmitNotice)
		r.Post("/notices/{id}/rescind", h.RescindNotice)
		r.Post("/notices/{id}/answer", h.AnswerQuestion)
		r.Post("/notices/{id}/clear", h.ClearNotice)
		r.Post("/notices/{id}/sync", h.SyncNotice)
		r.Post("/banners/{id}/dismiss", h.DismissBanner)
		r.Post("/banners/{id}/open", h.OpenBanner)
	})

	r.Route("/server", func(r chi.Router) {
		r.Get("/queue", h.ServerQueue)
		r.Post("/notices/{id}/approve", h.ServerApprove)
		r.Post("/notices/{id}/dispatch", h.ServerDispatch)
		r.Post("/notices/{id}/hold", h.ServerHold)
		r.Post("/notices/{id}/reject", h.ServerReject)
	})

	r.Route("/kitchen", func(r chi.Router) {
		r.Get("/queue", h.KitchenQueue)
		r.Get("/chefs", h.ListChefs)
		r.Put("/chefs", h.SetChefs)
		r.Post("/notices/{id}/acknowledge", h.KitchenAcknowledge)
		r.Post("/notices/{id}/message", h.KitchenMessage)
		r.Post("/notices/{id}/question", h.KitchenQuestion)
		r.Post("/notices/{id}/reject", h.KitchenReject)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type createNoticeRequest struct {
	notice.Draft
	ServerCode string `json:"server_code"`
}

type submitRequest struct {
	ServerCode string `json:"server_code"`
}

type answerRequest struct {
	Response string `json:"response"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type textRequest struct {
	Text string `json:"text"`
}

type acknowledgeRequest struct {
	ChefID string `json:"chef_id"`
}

type sidebarRequest struct {
	Open bool `json:"open"`
}

type chefsRequest struct {
	Chefs []notice.Chef `json:"chefs"`
}

type statusEntry struct {
	Code string `json:"code"`
	noticestatus.DisplayEntry
}

func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListStatuses")
	defer finish()

	entries := make([]statusEntry, 0, len(noticestatus.All))
	for _, s := range noticestatus.All {
		d, _ := noticestatus.Display(s.Code())
		d.Label = s.Label()
		d.Tone = s.Tone()
		entries = append(entries, statusEntry{Code: s.Code(), DisplayEntry: d})
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"statuses": entries,
	}, nil)
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetDashboard")
	defer finish()

	view, err := h.engine.Dashboard(r.Context())
	if err != nil {
		h.respondActionError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusOK, view, nil)
}

func (h *Handler) ToggleSidebar(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ToggleSidebar")
	defer finish()

	var req sidebarRequest
	if !h.decode(w, r, &req) {
		return
	}
	apt.Respond(w, http.StatusOK, h.engine.ToggleSidebar(req.Open), nil)
}

func (h *Handler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateNotice")
	defer finish()

	var req createNoticeRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.engine.CreateNotice(r.Context(), req.Draft, req.ServerCode)
	if err != nil {
		h.respondActionError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusCreated, out, nil)
}

func (h *Handler) SubmitNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitNotice")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.Submit(r.Context(), id, req.ServerCode)
	})
}

func (h *Handler) RescindNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RescindNotice")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.Rescind(r.Context(), id)
	})
}

func (h *Handler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AnswerQuestion")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.Answer(r.Context(), id, req.Response)
	})
}

func (h *Handler) ClearNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ClearNotice")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.engine.Clear(r.Context(), id); err != nil {
		h.respondActionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SyncNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SyncNotice")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.Sync(r.Context(), id)
	})
}

func (h *Handler) DismissBanner(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DismissBanner")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.engine.DismissBanner(id); err != nil {
		h.respondActionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OpenBanner(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenBanner")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	banner, err := h.engine.OpenBanner(r.Context(), id)
	if err != nil {
		h.respondActionError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusOK, banner, nil)
}

func (h *Handler) ServerQueue(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ServerQueue")
	defer finish()

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"notices": h.engine.ServerQueue(r.Context()),
	}, nil)
}

func (h *Handler) ServerApprove(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ServerApprove")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.ServerApprove(r.Context(), id)
	})
}

func (h *Handler) ServerDispatch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ServerDispatch")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.ServerDispatch(r.Context(), id)
	})
}

func (h *Handler) ServerHold(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ServerHold")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.ServerHold(r.Context(), id)
	})
}

func (h *Handler) ServerReject(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ServerReject")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.ServerReject(r.Context(), id, req.Reason)
	})
}

func (h *Handler) KitchenQueue(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.KitchenQueue")
	defer finish()

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"notices": h.engine.KitchenQueue(r.Context()),
	}, nil)
}

func (h *Handler) ListChefs(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListChefs")
	defer finish()

	chefs := h.engine.Chefs()
	if chefs == nil {
		chefs = []notice.Chef{}
	}
	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"chefs": chefs,
	}, nil)
}

func (h *Handler) SetChefs(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetChefs")
	defer finish()

	var req chefsRequest
	if !h.decode(w, r, &req) {
		return
	}

	chefs, err := h.engine.SetChefs(r.Context(), req.Chefs)
	if err != nil {
		h.respondActionError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"chefs": chefs,
	}, nil)
}

func (h *Handler) KitchenAcknowledge(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.KitchenAcknowledge")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req acknowledgeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.KitchenAcknowledge(r.Context(), id, req.ChefID)
	})
}

func (h *Handler) KitchenMessage(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.KitchenMessage")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.KitchenMessage(r.Context(), id, req.Text)
	})
}

func (h *Handler) KitchenQuestion(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.KitchenQuestion")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.KitchenQuestion(r.Context(), id, req.Text)
	})
}

func (h *Handler) KitchenReject(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.KitchenReject")
	defer finish()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOutcome(w, r, func() (Outcome, error) {
		return h.engine.KitchenReject(r.Context(), id, req.Reason)
	})
}

func (h *Handler) respondOutcome(w http.ResponseWriter, r *http.Request, run func() (Outcome, error)) {
	out, err := run()
	if err != nil {
		h.respondActionError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusOK, out, nil)
}

func (h *Handler) respondActionError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *notice.ValidationError
	switch {
	case errors.As(err, &verr):
		apt.Respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"errors": verr.Messages,
		}, nil)
	case errors.Is(err, notice.ErrNotFound), errors.Is(err, ErrBannerNotFound):
		apt.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, notice.ErrIllegalTransition),
		errors.Is(err, notice.ErrNoticeClosed),
		errors.Is(err, notice.ErrWrongDiningMode),
		errors.Is(err, ErrNotClearable):
		apt.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrSuperseded):
		apt.RespondError(w, http.StatusConflict, "The notice changed on another device, please review it and try again")
	case errors.Is(err, ErrGateway):
		h.log(r).Error("notice service call failed", "error", err)
		apt.RespondError(w, http.StatusBadGateway, "Could not reach the notice service, please try again")
	default:
		h.log(r).Error("notice action failed", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update notice")
	}
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	return body, true
}
