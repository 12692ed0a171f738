package notices

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/notices/pkg/event"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

// Handler serves the shared notice store the tablets reconcile against.
type Handler struct {
	repo      NoticeRepo
	publisher events.Publisher
	logger    apt.Logger
	config    *apt.Config
	tlm       *telemetry.HTTP
}

// NewHandler creates the notice API. A nil publisher disables notice.saved
// events.
func NewHandler(repo NoticeRepo, publisher events.Publisher, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		config:    config,
		tlm:       telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notices", func(r chi.Router) {
		r.Get("/", h.ListNotices)
		r.Get("/{id}", h.GetNotice)
		r.Put("/{id}", h.SaveNotice)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

// ListNotices handles GET /notices?restaurant_id=a&restaurant_id=b
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListNotices")
	defer finish()
	log := h.log(r)

	restaurantIDs := restaurantIDsFrom(r)
	if len(restaurantIDs) == 0 {
		apt.RespondError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}

	list, err := h.repo.List(r.Context(), restaurantIDs)
	if err != nil {
		log.Error("cannot list notices", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list notices")
		return
	}
	if list == nil {
		list = []notice.OrderNotice{}
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"notices": list,
	}, nil)
}

// GetNotice handles GET /notices/{id}
func (h *Handler) GetNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetNotice")
	defer finish()
	log := h.log(r)

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	n, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Notice not found")
			return
		}
		log.Error("cannot get notice", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not get notice")
		return
	}

	apt.Respond(w, http.StatusOK, n, nil)
}

// SaveNotice handles PUT /notices/{id}?restaurant_id=x. The body replaces the
// stored record unless the stored one is newer.
func (h *Handler) SaveNotice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SaveNotice")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var n notice.OrderNotice
	if err := json.Unmarshal(body, &n); err != nil {
		log.Debug("invalid notice payload", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if errs := ValidateSave(&n, id, restaurantID); len(errs) > 0 {
		log.Debug("validation failed", "errors", errs)
		h.respondValidationErrors(w, errs)
		return
	}

	result, err := h.repo.Save(ctx, &n)
	if err != nil {
		log.Error("cannot save notice", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not save notice")
		return
	}

	if result.Applied {
		previous := ""
		if result.Previous != nil {
			previous = result.Previous.Status
		}
		h.publishSaved(ctx, result.Current, previous)
	} else {
		log.Debug("stale notice ignored", "id", id.String())
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"notice":  result.Current,
		"applied": result.Applied,
	}, nil)
}

func (h *Handler) publishSaved(ctx context.Context, n notice.OrderNotice, previousStatus string) {
	if h.publisher == nil {
		return
	}

	eventBytes, err := json.Marshal(event.NewNoticeSavedEvent(n, previousStatus))
	if err != nil {
		h.logger.Errorf("Failed to encode notice.saved event: %v", err)
		return
	}
	if err := h.publisher.Publish(ctx, event.NoticesTopic, eventBytes); err != nil {
		h.logger.Errorf("Failed to publish notice.saved event: %v", err)
	}
}

func (h *Handler) respondValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  "Validation failed",
		"errors": errs,
	})
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid ID")
		return uuid.Nil, false
	}
	return id, true
}

// restaurantIDsFrom accepts repeated and comma-separated restaurant_id values.
func restaurantIDsFrom(r *http.Request) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, raw := range r.URL.Query()["restaurant_id"] {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
