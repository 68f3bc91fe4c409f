package storage

import (
	"io"
	"log"
	"net/http"
	"time"

	"faceserver/config"
	"faceserver/db"
)

// StorageAPI abstracts where the data directory lives - a local disk or
// an S3 bucket. Paths are always relative to the bucket (e.g.
// "known_faces/Alice.jpg"). Descriptor extraction needs a local file, so
// remote backends download to scratch space via EnsureLocalFile and drop
// the copy again with ReleaseLocalFile.
type StorageAPI interface {
	GetFullPath(path string) string
	EnsureDirExists(dir string) error
	EnsureLocalFile(path string) error
	ReleaseLocalFile(path string)
	GetSize(path string) int64
	Save(path string, reader io.Reader) (int64, error)
	Load(path string, writer io.Writer) (int64, error)
	Serve(path string, request *http.Request, writer http.ResponseWriter)
	Delete(path string) error
	Move(src, dst string) error
	List(dir string) ([]FileInfo, error)
}

type FileInfo struct {
	Name    string // base name within the listed location
	Size    int64
	ModTime time.Time
}

var cachedStorage []StorageAPI

func Init() {
	db.Instance.AutoMigrate(&Bucket{})

	var buckets []Bucket
	if err := db.Instance.Find(&buckets).Error; err != nil {
		panic(err)
	}
	if len(buckets) == 0 {
		bucket := defaultBucket()
		if err := bucket.Create(); err != nil {
			panic(err)
		}
		buckets = append(buckets, bucket)
	}
	cachedStorage = []StorageAPI{}
	for i := range buckets {
		bucket := buckets[i]
		log.Printf("Storage bucket %d: type=%d path=%s", bucket.ID, bucket.StorageType, bucket.Path)
		if bucket.StorageType == StorageTypeS3 {
			cachedStorage = append(cachedStorage, NewS3Storage(&bucket))
		} else {
			cachedStorage = append(cachedStorage, NewDiskStorage(&bucket))
		}
	}
}

func defaultBucket() Bucket {
	if config.S3_BUCKET != "" {
		return Bucket{
			Name:        config.S3_BUCKET,
			StorageType: StorageTypeS3,
			Path:        config.DATA_DIR,
			Region:      config.S3_REGION,
			Endpoint:    config.S3_ENDPOINT,
			AuthDetails: config.S3_AUTH,
		}
	}
	return Bucket{
		Name:        "disk",
		StorageType: StorageTypeFile,
		Path:        config.DATA_DIR,
	}
}

func GetDefaultStorage() StorageAPI {
	if len(cachedStorage) == 0 {
		panic("no storage available")
	}
	return cachedStorage[0]
}
