// Package search implements the web search tool offered to the model.
package search

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/yae-assistant/yae/pkg/logger"
	"github.com/yae-assistant/yae/pkg/metrics"
)

// Placeholder answers returned instead of errors.
const (
	ConfigurationText = "There is a problem with the configuration of the search tool."
	UnavailableText   = "There is a problem with the search tool."
	InvalidText       = "The response from the search tool could not be validated."
)

const defaultTimeout = 20 * time.Second

// Config holds the LinkUp endpoint and credentials.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Source is one web page backing an answer.
type Source struct {
	Name    string `json:"name" validate:"required"`
	Snippet string `json:"snippet"`
	URL     string `json:"url" validate:"required"`
}

// Result is the sourced answer returned by LinkUp.
type Result struct {
	Answer  string   `json:"answer" validate:"required"`
	Sources []Source `json:"sources" validate:"required,dive"`
}

type searchRequest struct {
	Query                  string `json:"q"`
	Depth                  string `json:"depth"`
	OutputType             string `json:"outputType"`
	IncludeImages          string `json:"includeImages"`
	IncludeInlineCitations string `json:"includeInlineCitations"`
}

// LinkUp is a client for the LinkUp search API.
type LinkUp struct {
	cfg      Config
	client   *resty.Client
	validate *validator.Validate
	log      *logger.Logger
}

// NewLinkUp creates a LinkUp client. A missing URL or key is not an error:
// searches then answer with ConfigurationText.
func NewLinkUp(cfg Config, log *logger.Logger) *LinkUp {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &LinkUp{
		cfg:      cfg,
		client:   resty.New().SetTimeout(cfg.Timeout),
		validate: validator.New(),
		log:      log.Named("search"),
	}
}

// Configured reports whether URL and key are set.
func (l *LinkUp) Configured() bool {
	return l.cfg.URL != "" && l.cfg.APIKey != ""
}

// Search returns the synthesized answer for query, or a placeholder text on failure.
func (l *LinkUp) Search(ctx context.Context, query string) string {
	if !l.Configured() {
		metrics.RecordToolCall(toolName, "misconfigured")
		return ConfigurationText
	}

	resp, err := l.client.R().
		SetContext(ctx).
		SetAuthToken(l.cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(searchRequest{
			Query:                  query,
			Depth:                  "standard",
			OutputType:             "sourcedAnswer",
			IncludeImages:          "false",
			IncludeInlineCitations: "false",
		}).
		Post(l.cfg.URL)
	if err != nil {
		l.log.Warn("search request failed", zap.Error(err))
		metrics.RecordToolCall(toolName, "transport_error")
		return UnavailableText
	}

	if resp.StatusCode() != http.StatusOK {
		l.log.Warn("search returned an error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 512)),
		)
		metrics.RecordToolCall(toolName, "bad_status")
		return UnavailableText
	}

	var result Result
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		l.log.Warn("search response is not valid JSON", zap.Error(err))
		metrics.RecordToolCall(toolName, "invalid")
		return InvalidText
	}
	if err := l.validate.Struct(result); err != nil {
		l.log.Warn("search response failed validation", zap.Error(err))
		metrics.RecordToolCall(toolName, "invalid")
		return InvalidText
	}

	metrics.RecordToolCall(toolName, "ok")
	return result.Answer
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
