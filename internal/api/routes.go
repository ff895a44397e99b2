package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mvp_sandbox_server/web"
)

// RegisterRoutes sets up the API endpoints and the embedded chat UI.
func RegisterRoutes(router *gin.Engine, h *APIHandler) {
	router.GET("/health", h.Health)

	router.POST("/mvp", h.GenerateMVP)
	router.POST("/sandbox-deploy", h.SandboxDeploy)
	router.POST("/github-export", h.GithubExport)

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
	})
}
