package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/lifecycle"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
)

// StatusView is the consolidated state shown by GET /status.
type StatusView struct {
	Paused    bool           `json:"paused"`
	Breaker   risk.State     `json:"breaker"`
	Stats     risk.Stats     `json:"stats"`
	MaxLosses int            `json:"max_losses"`
	InSession bool           `json:"in_session"`
	Segment   string         `json:"segment"`
	Symbols   []string       `json:"symbols"`
	Live      []trade.Record `json:"live"`
	Pending   []trade.Record `json:"pending"`
	Errors    []string       `json:"errors,omitempty"`
}

func (h *Handler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		var v StatusView
		note := func(err error) {
			if err != nil {
				v.Errors = append(v.Errors, err.Error())
			}
		}

		var err error
		v.Paused, err = h.d.Pause.Paused()
		note(err)
		v.Breaker, err = h.d.Breaker.State()
		note(err)
		v.Stats, err = h.d.Breaker.Stats()
		note(err)
		v.MaxLosses = h.d.Breaker.MaxLosses()

		now := h.now()
		v.InSession = h.d.Session.Contains(now)
		v.Segment = string(h.d.Session.Segment(now))
		v.Symbols = h.d.Symbols

		v.Live, err = h.d.Store.List(trade.Live)
		note(err)
		v.Pending, err = h.d.Store.List(trade.Pending)
		note(err)

		ok(c, v)
	}
}

func (h *Handler) SetPaused(paused bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.d.Pause.Set(paused); err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		text := "▶️ Bot resumed. Analysis cycles will run again."
		if paused {
			text = "⏸ Bot paused. No new analysis until resumed."
		}
		_ = h.d.Notifier.Notify(c.Request.Context(), notify.Text(text))
		ok(c, gin.H{"paused": paused})
	}
}

func (h *Handler) TodaysProfit() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.d.Broker.TodaysProfit(c.Request.Context())
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		ok(c, gin.H{"profit": p})
	}
}

func (h *Handler) RecipientsList() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := h.d.Recipients.List()
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		ok(c, ids)
	}
}

type recipientReq struct {
	ID string `json:"id" binding:"required"`
}

func (h *Handler) RecipientsAdd() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recipientReq
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		added, err := h.d.Recipients.Add(req.ID)
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		ok(c, gin.H{"id": req.ID, "added": added})
	}
}

func (h *Handler) RecipientsRemove() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.d.Recipients.Remove(c.Param("id"))
		switch {
		case errors.Is(err, notify.ErrUnknownRecipient):
			fail(c, http.StatusNotFound, err)
		case err != nil:
			fail(c, http.StatusInternalServerError, err)
		default:
			ok(c, gin.H{"id": c.Param("id"), "removed": true})
		}
	}
}

// ApplyDecision applies a decision posted by an operator or an external
// analyst outside the scheduled cycle.
func (h *Handler) ApplyDecision() gin.HandlerFunc {
	return func(c *gin.Context) {
		var d lifecycle.Decision
		if err := c.ShouldBindJSON(&d); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		eff, err := h.d.Engine.Apply(c.Request.Context(), d, trade.Meta{})
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		ok(c, eff)
	}
}

func (h *Handler) Reconcile() gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := h.d.Reconciler.RunOnce(c.Request.Context())
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		body := gin.H{
			"skipped":  rep.Skipped,
			"promoted": rep.Promoted,
			"closed":   rep.Closed,
			"gaps":     rep.Gaps,
		}
		if rep.Err != nil {
			body["error"] = rep.Err.Error()
		}
		ok(c, body)
	}
}

func (h *Handler) Analyze() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := trade.NormalizeSymbol(c.Param("symbol"))
		if !slices.Contains(h.d.Symbols, symbol) {
			fail(c, http.StatusNotFound, fmt.Errorf("%w: %s", lifecycle.ErrUnsupportedSymbol, symbol))
			return
		}
		if h.d.Runner == nil {
			fail(c, http.StatusServiceUnavailable, errors.New("no analyst configured"))
			return
		}
		out, err := h.d.Runner.RunSymbol(c.Request.Context(), symbol)
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		ok(c, out)
	}
}

func statusFor(err error) int {
	var re *broker.RequestError
	switch {
	case errors.Is(err, lifecycle.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrOrderRejected), errors.Is(err, lifecycle.ErrUnsupportedSymbol):
		return http.StatusUnprocessableEntity
	case errors.As(err, &re), errors.Is(err, broker.ErrResponseShape):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
