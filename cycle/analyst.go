package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rustyeddy/tradekeeper/filter"
	"github.com/rustyeddy/tradekeeper/lifecycle"
	"github.com/rustyeddy/tradekeeper/trade"
)

// Request is what an Analyst is asked to decide on.
type Request struct {
	CycleID string         `json:"cycle_id"`
	Symbol  string         `json:"symbol"`
	Time    time.Time      `json:"time"`
	Active  *trade.Record  `json:"active,omitempty"`
	Thesis  string         `json:"thesis,omitempty"`
	Filter  *filter.Result `json:"filter,omitempty"`
	Meta    trade.Meta     `json:"meta"`
}

// Analyst turns market context into a decision.
type Analyst interface {
	Analyze(ctx context.Context, req Request) (lifecycle.Decision, error)
}

// HTTPAnalyst posts the request to an external analysis service and
// decodes its decision.
type HTTPAnalyst struct {
	http *resty.Client
}

func NewHTTPAnalyst(baseURL, apiKey string, timeout time.Duration) *HTTPAnalyst {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &HTTPAnalyst{http: c}
}

func (a *HTTPAnalyst) Analyze(ctx context.Context, req Request) (lifecycle.Decision, error) {
	var d lifecycle.Decision
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&d).
		Post("/analyze")
	if err != nil {
		return lifecycle.Decision{}, fmt.Errorf("analyst: %w", err)
	}
	if resp.IsError() {
		return lifecycle.Decision{}, fmt.Errorf("analyst: %s: %s", resp.Status(), resp.String())
	}
	return d, nil
}
