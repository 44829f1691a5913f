package service

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	DefaultOutlookTemplate = "Write a report on the outlook for {symbol} stock from the years 2023-2027. " +
		"Be sure to include potential risks and headwinds. " +
		"Include potential risks and headwinds based on the indexed articles."
	DefaultCompetitorTemplate = "Write a report on the competition between {symbol1} stock and {symbol2} stock. " +
		"based on the indexed articles."

	// SampleQuestion is asked when no question is given on the command line
	SampleQuestion = "What are the key trends in financial stocks mentioned in the articles?"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// ReportTemplates are the question templates behind the outlook and competitor reports.
type ReportTemplates struct {
	Outlook    string `yaml:"outlook"`
	Competitor string `yaml:"competitor"`
}

func DefaultReportTemplates() ReportTemplates {
	return ReportTemplates{
		Outlook:    DefaultOutlookTemplate,
		Competitor: DefaultCompetitorTemplate,
	}
}

// LoadReportTemplates reads templates from a YAML file. Templates missing from
// the file keep their defaults.
func LoadReportTemplates(path string) (ReportTemplates, error) {
	templates := DefaultReportTemplates()
	if path == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return templates, fmt.Errorf("failed to read templates file: %w", err)
	}

	var fromFile ReportTemplates
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return templates, fmt.Errorf("failed to parse templates file: %w", err)
	}

	if fromFile.Outlook != "" {
		if !strings.Contains(fromFile.Outlook, "{symbol}") {
			return templates, fmt.Errorf("outlook template must contain {symbol}")
		}
		templates.Outlook = fromFile.Outlook
	}
	if fromFile.Competitor != "" {
		if !strings.Contains(fromFile.Competitor, "{symbol1}") || !strings.Contains(fromFile.Competitor, "{symbol2}") {
			return templates, fmt.Errorf("competitor template must contain {symbol1} and {symbol2}")
		}
		templates.Competitor = fromFile.Competitor
	}

	return templates, nil
}

// OutlookQuestion renders the single-stock outlook question.
func (t ReportTemplates) OutlookQuestion(symbol string) (string, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(t.Outlook, "{symbol}", symbol), nil
}

// CompetitorQuestion renders the two-stock competitor question.
func (t ReportTemplates) CompetitorQuestion(symbol, competitor string) (string, error) {
	first, err := NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	second, err := NormalizeSymbol(competitor)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer("{symbol1}", first, "{symbol2}", second).Replace(t.Competitor), nil
}

// NormalizeSymbol trims and upper-cases a ticker symbol and rejects anything
// that does not look like one.
func NormalizeSymbol(symbol string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(normalized) {
		return "", domain.ErrInvalidSymbol.WithCause(fmt.Errorf("%q", symbol))
	}
	return normalized, nil
}
