package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/logger"
	"go.uber.org/zap"
)

// Meter counts successful tenant requests against their organization after
// the handler runs. Handlers opt into per-feature buckets by setting
// CtxFeatureKey. Failures are logged and swallowed; metering never breaks a
// request.
func Meter(metering *services.MeteringService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		session := CurrentSession(c)
		if session == nil || session.OrgID == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		feature := c.GetString(CtxFeatureKey)
		if err := metering.RecordRequest(c.Request.Context(), *session.OrgID, route, feature); err != nil {
			logger.WithModule("metering").Warn("record request failed",
				zap.String("org_id", *session.OrgID),
				zap.Error(err))
		}
	}
}
