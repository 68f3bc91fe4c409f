package main

import (
	"log"
	"strings"
	"time"

	"faceserver/classifier"
	"faceserver/config"
	"faceserver/db"
	"faceserver/faces"
	"faceserver/gallery"
	"faceserver/handlers"
	"faceserver/models"
	"faceserver/storage"
	"faceserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
)

func main() {
	db.Init()
	models.Init()
	storage.Init()
	if err := faces.Init(config.MODELS_DIR); err != nil {
		log.Fatalf("Cannot initialize face recognition: %v", err)
	}
	defer faces.Close()

	g := gallery.New(storage.GetDefaultStorage(), faces.Default())
	if err := g.Load(); err != nil {
		log.Fatalf("Cannot load face gallery: %v", err)
	}
	model := classifier.New(faces.Default(), config.MODELS_DIR)
	if err := model.LoadFromDisk(g.Names()); err != nil {
		log.Printf("Warning: %v", err)
	}
	g.OnChange(model.MarkStale)

	handlers.Init(g, model, faces.Default())
	handlers.StartUploadJanitor()

	if !config.DEBUG_MODE {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{})
	if config.DEBUG_MODE {
		router.Use(utils.ErrorLogMiddleware)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        30 * 24 * time.Hour,
	}))
	if !config.DEBUG_MODE {
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/get_image"})))
	}
	router.Use((&utils.CacheRouter{CacheTime: utils.CacheNoCache}).Handler()) // No cache by default, individual end-points can override that
	router.MaxMultipartMemory = int64(config.MAX_UPLOAD_SIZE)

	router.GET("/", handlers.Index)
	router.GET("/health", handlers.Health)
	router.POST("/register_face", handlers.RegisterFace)
	router.POST("/recognize", handlers.Recognize)
	router.GET("/list_known_faces", handlers.ListKnownFaces)
	router.GET("/delete_face/:name", handlers.DeleteFace)
	router.GET("/get_image/:filename", handlers.GetImage)
	router.POST("/model/train", handlers.TrainModel)
	router.GET("/model/status", handlers.ModelStatus)

	var err error
	if config.TLS_DOMAINS != "" {
		err = autotls.Run(router, strings.Split(config.TLS_DOMAINS, ",")...)
	} else {
		err = router.Run(config.BIND_ADDRESS)
	}
	log.Fatalf("Server stopped: %v", err)
}
