package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/newsrag/internal/api"
	"github.com/cloo-solutions/newsrag/internal/api/middleware"
	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/service"
)

// MaxTopK bounds the top_k accepted from clients
const MaxTopK = 50

type QueryService interface {
	Ask(ctx context.Context, question string, topK int) (*domain.Answer, error)
	Outlook(ctx context.Context, symbol string) (*domain.Answer, error)
	Competitor(ctx context.Context, symbol, competitor string) (*domain.Answer, error)
	Status() service.IndexStatus
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type OutlookRequest struct {
	Symbol string `json:"symbol"`
}

type CompetitorRequest struct {
	Symbol     string `json:"symbol"`
	Competitor string `json:"competitor"`
}

type SourceResponse struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Offset     int    `json:"offset"`
	Text       string `json:"text"`
}

type AnswerResponse struct {
	Answer  string            `json:"answer"`
	Sources []*SourceResponse `json:"sources"`
}

type IndexResponse struct {
	Loaded     bool   `json:"loaded"`
	Entries    int    `json:"entries"`
	Dimensions int    `json:"dimensions"`
	Provider   string `json:"provider,omitempty"`
}

// Ask answers a free-form question
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decode(w, r, &req) {
		return
	}

	if req.TopK < 0 || req.TopK > MaxTopK {
		api.Error(w, http.StatusBadRequest, "top_k must be between 1 and 50 when set")
		return
	}

	middleware.Annotate(r.Context(), middleware.RequestAnnotation{Operation: "query", TopK: req.TopK})

	answer, err := h.svc.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toAnswerResponse(answer))
}

// Outlook writes the outlook report for one symbol
func (h *QueryHandler) Outlook(w http.ResponseWriter, r *http.Request) {
	var req OutlookRequest
	if !decode(w, r, &req) {
		return
	}

	middleware.Annotate(r.Context(), middleware.RequestAnnotation{
		Operation: "outlook",
		Symbols:   validSymbols(req.Symbol),
	})

	answer, err := h.svc.Outlook(r.Context(), req.Symbol)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toAnswerResponse(answer))
}

// Competitor writes the competitor report for two symbols
func (h *QueryHandler) Competitor(w http.ResponseWriter, r *http.Request) {
	var req CompetitorRequest
	if !decode(w, r, &req) {
		return
	}

	middleware.Annotate(r.Context(), middleware.RequestAnnotation{
		Operation: "competitor",
		Symbols:   validSymbols(req.Symbol, req.Competitor),
	})

	answer, err := h.svc.Competitor(r.Context(), req.Symbol, req.Competitor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toAnswerResponse(answer))
}

// Status describes the index being served
func (h *QueryHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.Annotate(r.Context(), middleware.RequestAnnotation{Operation: "status"})
	status := h.svc.Status()
	api.Success(w, http.StatusOK, IndexResponse{
		Loaded:     status.Loaded,
		Entries:    status.Entries,
		Dimensions: status.Dimensions,
		Provider:   status.Provider,
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// validSymbols normalizes the symbols that look like tickers and drops the
// rest, which the service rejects anyway.
func validSymbols(raw ...string) []string {
	var symbols []string
	for _, symbol := range raw {
		if normalized, err := service.NormalizeSymbol(symbol); err == nil {
			symbols = append(symbols, normalized)
		}
	}
	return symbols
}

func toAnswerResponse(answer *domain.Answer) *AnswerResponse {
	sources := make([]*SourceResponse, len(answer.Sources))
	for i, chunk := range answer.Sources {
		sources[i] = &SourceResponse{
			Source:     chunk.Source,
			ChunkIndex: chunk.Index,
			Offset:     chunk.Offset,
			Text:       chunk.Text,
		}
	}
	return &AnswerResponse{
		Answer:  answer.Text,
		Sources: sources,
	}
}
