package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports process liveness. It does not probe the upstream
// providers; a healthy process with a dead provider still answers 200 here
// and 503 on the chat endpoints.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
