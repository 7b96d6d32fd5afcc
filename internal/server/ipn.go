package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/makehaven/paypal-inventory-listener/internal/observability/context"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/logger"
	"go.uber.org/zap"
)

// maxNotificationBytes bounds the request body we are willing to echo back
// to the verification endpoint.
const maxNotificationBytes = 64 << 10

// HandleIPN ingests one payment notification. The response is always an
// empty 200: anything else makes the sender retry the same notification
// for days, and every terminal state here is one we have already recorded.
func (s *Server) HandleIPN(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes))
	if err != nil {
		log.Warn("failed to read notification body", zap.Error(err))
		c.String(http.StatusOK, "")
		return
	}

	trusted := s.isTrustedLocal(c)
	if err := s.ipnSvc.Process(ctx, string(body), trusted); err != nil {
		// Already logged and recorded downstream with the specific outcome.
		log.Debug("notification not applied", zap.Error(err))
	}

	c.String(http.StatusOK, "")
}

// isTrustedLocal reports whether the request originates from a local
// development environment, in which case origin verification is skipped.
func (s *Server) isTrustedLocal(c *gin.Context) bool {
	ip := c.ClientIP()
	if ip == "127.0.0.1" || ip == "::1" {
		return true
	}
	suffix := s.cfg.LocalTestHostSuffix
	if suffix == "" {
		return false
	}
	host := c.Request.Host
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	return strings.HasSuffix(host, suffix)
}
