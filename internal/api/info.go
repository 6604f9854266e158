package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const welcomeMessage = "Welcome to the Stable Diffusion API"

func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
