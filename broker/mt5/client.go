// Package mt5 talks to the MT5 REST bridge.
package mt5

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/trade"
	"go.uber.org/zap"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultHistoryLookback = 48 * time.Hour
)

type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	HistoryLookback time.Duration
	// Location bounds "today" for TodaysProfit.
	Location *time.Location
}

type Client struct {
	http     *resty.Client
	lookback time.Duration
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger
}

var _ broker.Broker = (*Client)(nil)

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HistoryLookback <= 0 {
		cfg.HistoryLookback = DefaultHistoryLookback
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("X-API-Key", cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetJSONMarshaler(json.Marshal)
	client.SetJSONUnmarshaler(json.Unmarshal)

	return &Client{
		http:     client,
		lookback: cfg.HistoryLookback,
		loc:      cfg.Location,
		now:      time.Now,
		log:      log.Named("mt5"),
	}
}

// envelope is the bridge's reply to state-changing calls.
type envelope struct {
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type ticketBody struct {
	Ticket trade.Ticket `json:"ticket"`
}

func kindFor(status int) broker.ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return broker.KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return broker.KindInvalidRequest
	case status >= 500:
		return broker.KindServer
	}
	return broker.KindRejected
}

func bodyText(resp *resty.Response) string {
	s := strings.TrimSpace(resp.String())
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}

// do runs req and maps transport failures and non-2xx replies to
// broker.RequestError.
func (c *Client) do(ctx context.Context, op, method, path string, req *resty.Request) (*resty.Response, error) {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return nil, &broker.RequestError{Op: op, Kind: broker.KindTransport, Err: err}
	}
	if resp.IsError() {
		return nil, &broker.RequestError{
			Op:     op,
			Kind:   kindFor(resp.StatusCode()),
			Status: resp.StatusCode(),
			Msg:    bodyText(resp),
		}
	}
	return resp, nil
}

// post sends body and unwraps the {message, result} envelope.
func (c *Client) post(ctx context.Context, op, path string, body any) (json.RawMessage, error) {
	resp, err := c.do(ctx, op, http.MethodPost, path, c.http.R().SetBody(body))
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, broker.ShapeError(op, err.Error())
	}
	res := bytes.TrimSpace(env.Result)
	if env.Message == "" || len(res) == 0 || bytes.Equal(res, []byte("null")) {
		return nil, broker.ShapeError(op, "missing message or result: "+bodyText(resp))
	}
	c.log.Debug("bridge ok", zap.String("op", op), zap.String("message", env.Message))
	return res, nil
}

// getArray fetches path and requires a JSON array reply.
func (c *Client) getArray(ctx context.Context, op, path string, query map[string]string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, c.http.R().SetQueryParams(query))
	if err != nil {
		return err
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || body[0] != '[' {
		return broker.ShapeError(op, "want array: "+bodyText(resp))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return broker.ShapeError(op, err.Error())
	}
	return nil
}

func (c *Client) OpenOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	c.log.Info("open order",
		zap.String("symbol", req.Symbol),
		zap.String("type", string(req.Type)),
		zap.Float64("price", req.Price),
		zap.Float64("sl", req.StopLoss),
		zap.Float64("tp", req.TakeProfit),
		zap.Float64("volume", req.Volume))

	raw, err := c.post(ctx, "open order", "/order", req)
	if err != nil {
		return broker.OrderResult{}, err
	}
	var res wireOrderResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return broker.OrderResult{}, broker.ShapeError("open order", err.Error())
	}
	return broker.OrderResult{Order: res.Order.ticket(), Deal: res.Deal.ticket(), Ticket: res.Ticket.ticket()}, nil
}

func (c *Client) CancelPendingOrder(ctx context.Context, ticket trade.Ticket) error {
	c.log.Info("cancel pending order", zap.Stringer("ticket", ticket))
	_, err := c.post(ctx, "cancel order", "/order/cancel", ticketBody{Ticket: ticket})
	return err
}

func (c *Client) ClosePosition(ctx context.Context, ticket trade.Ticket) error {
	c.log.Info("close position", zap.Stringer("ticket", ticket))
	_, err := c.post(ctx, "close position", "/position/close_by_ticket", ticketBody{Ticket: ticket})
	return err
}

// ActivePositions fails on anything but an array so a bridge fault is
// never mistaken for "nothing open".
func (c *Client) ActivePositions(ctx context.Context) ([]broker.Position, error) {
	var wire []wirePosition
	if err := c.getArray(ctx, "positions", "/get_positions", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(wire))
	for _, p := range wire {
		out = append(out, p.position())
	}
	return out, nil
}

// Deals returns the deal history within [from, to].
func (c *Client) Deals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	var wire []wireDeal
	err := c.getArray(ctx, "deal history", "/history_deals_get", map[string]string{
		"from_date": from.UTC().Format(time.RFC3339),
		"to_date":   to.UTC().Format(time.RFC3339),
	}, &wire)
	if err != nil {
		return nil, err
	}
	out := make([]broker.Deal, 0, len(wire))
	for _, d := range wire {
		out = append(out, d.deal())
	}
	return out, nil
}

func (c *Client) ClosingDeal(ctx context.Context, ticket trade.Ticket) (*broker.Deal, error) {
	now := c.now()
	deals, err := c.Deals(ctx, now.Add(-c.lookback), now)
	if err != nil {
		return nil, fmt.Errorf("closing deal #%s: %w", ticket, err)
	}
	d := broker.FindClosingDeal(deals, ticket)
	if d == nil {
		c.log.Warn("no closing deal in history", zap.Stringer("ticket", ticket), zap.Duration("lookback", c.lookback))
	}
	return d, nil
}

func (c *Client) TodaysProfit(ctx context.Context) (float64, error) {
	now := c.now().In(c.loc)
	y, m, d := now.Date()
	deals, err := c.Deals(ctx, time.Date(y, m, d, 0, 0, 0, 0, c.loc), now)
	if err != nil {
		return 0, err
	}
	return SumProfit(deals), nil
}
