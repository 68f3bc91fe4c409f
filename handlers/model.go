package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type TrainResponse struct {
	Success bool   `json:"success"`
	Classes int    `json:"classes"`
	State   string `json:"state"`
}

// TrainModel handles POST /model/train, fitting the classifier on the
// current gallery. Training a couple of identities takes well under a
// second, so this runs synchronously.
func TrainModel(c *gin.Context) {
	if err := classifierInstance.Train(galleryInstance); err != nil {
		errorResponse(c, err)
		return
	}
	status := classifierInstance.Status()
	c.JSON(http.StatusOK, TrainResponse{Success: true, Classes: status.Classes, State: status.State})
}

// ModelStatus handles GET /model/status.
func ModelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, classifierInstance.Status())
}
