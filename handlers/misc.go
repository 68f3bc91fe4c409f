package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Index handles GET /, a small service description.
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "faceserver",
		"endpoints": []string{
			"POST /register_face",
			"POST /recognize",
			"GET /list_known_faces",
			"GET /delete_face/:name",
			"GET /get_image/:filename",
			"POST /model/train",
			"GET /model/status",
		},
	})
}

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"known_faces": galleryInstance.Size(),
		"model":       classifierInstance.Status().State,
	})
}
