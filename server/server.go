// Package server exposes the engine's operator controls over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/cycle"
	"github.com/rustyeddy/tradekeeper/gate"
	"github.com/rustyeddy/tradekeeper/lifecycle"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/session"
	"github.com/rustyeddy/tradekeeper/store"
	"go.uber.org/zap"
)

// Deps are the components the API reads and drives.
type Deps struct {
	Store      *store.Store
	Breaker    *risk.Breaker
	Pause      *gate.PauseFlag
	Session    *session.Gate
	Recipients *notify.RecipientList
	Broker     broker.Broker
	Engine     *lifecycle.Engine
	Reconciler *lifecycle.Reconciler
	Runner     *cycle.Runner
	Notifier   notify.Notifier
	Gatherer   prometheus.Gatherer
	Symbols    []string
	Log        *zap.Logger
}

type Handler struct {
	d   Deps
	log *zap.Logger
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Discard
	}
	return &Handler{d: d, log: log.Named("server"), now: time.Now}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), h.accessLog())

	g.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if h.d.Gatherer != nil {
		g.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.d.Gatherer, promhttp.HandlerOpts{})))
	}

	g.GET("/status", h.Status())
	g.POST("/pause", h.SetPaused(true))
	g.POST("/resume", h.SetPaused(false))
	g.GET("/profit/today", h.TodaysProfit())

	r := g.Group("/recipients")
	{
		r.GET("", h.RecipientsList())
		r.POST("", h.RecipientsAdd())
		r.DELETE("/:id", h.RecipientsRemove())
	}

	g.POST("/decisions", h.ApplyDecision())
	g.POST("/reconcile", h.Reconcile())
	g.POST("/analyze/:symbol", h.Analyze())
	return g
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("control api listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
