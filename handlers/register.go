package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type RegisterResponse struct {
	Success  bool     `json:"success"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// RegisterFace handles POST /register_face: a multipart "image" file and
// a "name" field. The primary face in the image becomes the reference
// for that name; registering an existing name replaces it.
func RegisterFace(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, Response{Error: "name is required"})
		return
	}
	img, err := readImageUpload(c)
	if err != nil {
		errorResponse(c, err)
		return
	}
	entry, err := galleryInstance.Put(name, img)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, RegisterResponse{
		Success:  true,
		Name:     entry.Name,
		Location: locationOf(entry.Region),
	})
}
