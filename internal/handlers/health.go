package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/pkg/response"
)

// Health reports service status, current unix time, and database
// reachability.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil {
			dbStatus = "error"
		} else if err := sqlDB.PingContext(requestContext(c)); err != nil {
			dbStatus = "error"
		}

		status := http.StatusOK
		overall := "ok"
		if dbStatus != "ok" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		response.Success(c, status, gin.H{
			"status":   overall,
			"time":     time.Now().Unix(),
			"database": dbStatus,
		})
	}
}
