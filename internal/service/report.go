package service

import (
	"context"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/cloo-solutions/newsrag/internal/telemetry"
)

// IndexSource yields the index currently being served
type IndexSource interface {
	Get() *index.Store
}

// IndexStatus summarizes the served index
type IndexStatus struct {
	Loaded     bool
	Entries    int
	Dimensions int
	Provider   string
}

// ReportService answers free-form questions and renders the outlook and
// competitor reports against the served index.
type ReportService struct {
	engine    *QueryEngine
	source    IndexSource
	templates ReportTemplates
}

// NewReportService creates a new ReportService instance
func NewReportService(engine *QueryEngine, source IndexSource, templates ReportTemplates) *ReportService {
	return &ReportService{
		engine:    engine,
		source:    source,
		templates: templates,
	}
}

// Ask answers a free-form question. topK <= 0 uses the engine default.
func (s *ReportService) Ask(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	return s.engine.AnswerTopK(ctx, s.source.Get(), question, topK)
}

// Outlook writes the outlook report for one symbol.
func (s *ReportService) Outlook(ctx context.Context, symbol string) (*domain.Answer, error) {
	question, err := s.templates.OutlookQuestion(symbol)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ReportService.Outlook", telemetry.SpanAttributes{
		Symbol:    symbol,
		Operation: "outlook",
	})
	defer span.End()

	return s.engine.Answer(ctx, s.source.Get(), question)
}

// Competitor writes the competitor report for two symbols.
func (s *ReportService) Competitor(ctx context.Context, symbol, competitor string) (*domain.Answer, error) {
	question, err := s.templates.CompetitorQuestion(symbol, competitor)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ReportService.Competitor", telemetry.SpanAttributes{
		Symbol:    symbol + "," + competitor,
		Operation: "competitor",
	})
	defer span.End()

	return s.engine.Answer(ctx, s.source.Get(), question)
}

// Status describes the index currently served.
func (s *ReportService) Status() IndexStatus {
	store := s.source.Get()
	if store == nil {
		return IndexStatus{}
	}
	return IndexStatus{
		Loaded:     true,
		Entries:    store.Len(),
		Dimensions: store.Dimensions(),
		Provider:   store.Provider(),
	}
}
