package handlers

import (
	"net/http"
	"strings"

	"faceserver/storage"

	"github.com/gin-gonic/gin"
)

type ListResponse struct {
	Success    bool     `json:"success"`
	KnownFaces []string `json:"known_faces"`
	Count      int      `json:"count"`
}

// ListKnownFaces handles GET /list_known_faces.
func ListKnownFaces(c *gin.Context) {
	names := galleryInstance.Names()
	c.JSON(http.StatusOK, ListResponse{Success: true, KnownFaces: names, Count: len(names)})
}

type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	Name    string `json:"name"`
}

// DeleteFace handles GET /delete_face/:name. An unregistered name gets
// a 404 with deleted=false; repeating a delete is otherwise harmless.
func DeleteFace(c *gin.Context) {
	name := c.Param("name")
	deleted, err := galleryInstance.Delete(name)
	if err != nil {
		errorResponse(c, err)
		return
	}
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	c.JSON(status, DeleteResponse{Deleted: deleted, Name: name})
}

// GetImage handles GET /get_image/:filename, serving annotated result
// images. Only plain file names are accepted, no path components.
func GetImage(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid file name"})
		return
	}
	path := storage.LocationUploads + "/" + name
	store := uploadsStorage()
	if store.GetSize(path) < 0 {
		c.JSON(http.StatusNotFound, Response{Error: "not found"})
		return
	}
	store.Serve(path, c.Request, c.Writer)
}
