// Package server exposes the confession-link and payment-verification
// API over HTTP. Handlers stay thin: request decoding and status-code
// mapping here, every decision in the verification and store packages.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crushlink/crushpay/logger"
	"github.com/crushlink/crushpay/registry"
	"github.com/crushlink/crushpay/store"
	"github.com/crushlink/crushpay/types"
	"github.com/crushlink/crushpay/verification"
)

// Server wires the HTTP surface over the link store and the chain
// verifier.
type Server struct {
	links    store.Store
	verifier *verification.VerificationService
	log      logger.Logger
	registry *prometheus.Registry
	engine   *gin.Engine
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetricsRegistry mounts /metrics backed by the given registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

func NewServer(links store.Store, verifier *verification.VerificationService, opts ...Option) *Server {
	s := &Server{
		links:    links,
		verifier: verifier,
		log:      logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealth)
	if s.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api")
	api.GET("/chains", s.handleChains)
	api.POST("/request", s.handleCreateLink)
	api.GET("/request/:linkId", s.handleGetLink)
	api.POST("/respond", s.handleRespond)
	api.POST("/verify-tx", s.handleVerifyTx)

	s.engine = engine
	return s
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.engine }

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", map[string]any{"addr": addr})
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleChains returns the full payment registry so clients can render
// chain and token choices without hardcoding them.
func (s *Server) handleChains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": registry.All()})
}

type createLinkRequest struct {
	CrushHandle string `json:"crushHandle" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

func (s *Server) handleCreateLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crushHandle and message are required"})
		return
	}

	link := &types.CrushLink{
		CrushHandle: strings.TrimPrefix(req.CrushHandle, "@"),
		Message:     req.Message,
	}
	if err := s.links.Create(c.Request.Context(), link); err != nil {
		s.log.Error("link create failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create link"})
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (s *Server) handleGetLink(c *gin.Context) {
	link, err := s.links.Get(c.Request.Context(), c.Param("linkId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}
		s.log.Error("link lookup failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, link)
}

type respondRequest struct {
	LinkID string `json:"linkId" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// handleRespond applies the free response path. Only "accepted" comes
// through here; rejection is priced and must pass payment verification.
func (s *Server) handleRespond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "linkId and status are required"})
		return
	}
	if req.Status != string(types.StatusAccepted) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only the accepted status can be set directly"})
		return
	}

	link, err := s.links.Get(c.Request.Context(), req.LinkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if link.Status.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "link already answered"})
		return
	}

	if err := s.links.UpdateStatus(c.Request.Context(), req.LinkID, types.StatusAccepted, ""); err != nil {
		s.log.Error("respond update failed", map[string]any{"linkId": req.LinkID, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": string(types.StatusAccepted)})
}

// handleVerifyTx re-checks a claimed rejection payment against chain
// state. Requests the verifier cannot evaluate at all get a 400;
// evaluated-but-unverified payments also answer 400 so a client never
// mistakes denial for success.
func (s *Server) handleVerifyTx(c *gin.Context) {
	var req types.VerifyTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.VerifyTxResponse{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	start := time.Now()
	result, err := s.verifier.VerifyTransaction(c.Request.Context(), &req)
	if err != nil {
		s.log.Error("verification errored", map[string]any{"txHash": req.TxHash, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, types.VerifyTxResponse{
			Success: false,
			Error:   "verification error",
		})
		return
	}

	s.log.Info("verification served", map[string]any{
		"txHash":   req.TxHash,
		"verified": result.Verified,
		"took":     time.Since(start).String(),
	})

	if !result.Verified {
		c.JSON(http.StatusBadRequest, types.VerifyTxResponse{
			Success: false,
			Error:   result.Reason,
		})
		return
	}
	c.JSON(http.StatusOK, types.VerifyTxResponse{
		Success: true,
		Status:  string(types.StatusRejectedPaid),
	})
}
