package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sam17/fxlifesheet/core/logger"
	"github.com/sam17/fxlifesheet/internal/questions"
	"github.com/sam17/fxlifesheet/internal/records"
	"log/slog"
)

// QuestionStore is the catalog surface the API reads from.
type QuestionStore interface {
	QuestionsFiltered(ctx context.Context, category string, visibleOnly bool) ([]questions.Question, error)
	Categories(ctx context.Context) ([]questions.Category, error)
}

// RecordStore is the raw data surface the API reads and writes.
type RecordStore interface {
	List(ctx context.Context) ([]records.Entry, error)
	ByKey(ctx context.Context, key string) ([]records.Entry, error)
	Insert(ctx context.Context, e records.Entry) error
}

type handler struct {
	questions QuestionStore
	records   RecordStore
}

func (h *handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	visibleOnly := false
	if raw := r.URL.Query().Get("is_visible"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "is_visible must be a boolean")
			return
		}
		visibleOnly = v
	}

	list, err := h.questions.QuestionsFiltered(r.Context(), category, visibleOnly)
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.questions.Categories(r.Context())
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *handler) handleRawDataList(w http.ResponseWriter, r *http.Request) {
	list, err := h.records.List(r.Context())
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *handler) handleRawDataByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	list, err := h.records.ByKey(r.Context(), key)
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *handler) handleRawDataInsert(w http.ResponseWriter, r *http.Request) {
	var entry records.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if entry.QuestionKey == "" || entry.Source == "" {
		respondError(w, http.StatusBadRequest, "question_key and source are required")
		return
	}

	if err := h.records.Insert(r.Context(), entry); err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"errorMessage": message})
}

func respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	logger.WEB.Error("request failed",
		slog.String("event", "request.fail"),
		slog.String("url", r.URL.Path),
		slog.String("err", err.Error()),
	)
	respondError(w, http.StatusInternalServerError, "internal error")
}
