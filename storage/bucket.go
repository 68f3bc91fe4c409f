package storage

import (
	"os"
	"path/filepath"
	"strings"

	"faceserver/db"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type StorageType uint8

const (
	StorageTypeFile StorageType = 0
	StorageTypeS3   StorageType = 1
)

// Locations inside a bucket
const (
	LocationKnownFaces = "known_faces" // one reference image per registered identity
	LocationUploads    = "uploads"     // request uploads and annotated results
)

type Bucket struct {
	ID          uint64 `gorm:"primaryKey"`
	CreatedAt   int64
	UpdatedAt   int64
	Name        string `gorm:"type:varchar(200)"` // S3 bucket name (unused for disk buckets)
	StorageType StorageType
	Path        string // Path on a drive or a prefix in a S3 bucket
	Region      string
	Endpoint    string
	AuthDetails string // In case of S3 bucket - "key:secret"
}

func (b *Bucket) Create() error {
	if err := db.Instance.Create(b).Error; err != nil {
		return err
	}
	if b.StorageType == StorageTypeFile {
		// Pre-create locations on disk
		if err := os.MkdirAll(filepath.Join(b.Path, LocationKnownFaces), 0777); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(b.Path, LocationUploads), 0777); err != nil {
			return err
		}
	}
	return nil
}

// GetRemotePath prepends the bucket's prefix for S3 object keys
func (b *Bucket) GetRemotePath(path string) string {
	if b.Path == "" {
		return path
	}
	return strings.TrimSuffix(b.Path, "/") + "/" + path
}

func (b *Bucket) CreateSVC() *s3.S3 {
	cfg := aws.NewConfig().WithRegion(b.Region)
	if b.Endpoint != "" {
		cfg = cfg.WithEndpoint(b.Endpoint).WithS3ForcePathStyle(true)
	}
	if b.AuthDetails != "" {
		parts := strings.SplitN(b.AuthDetails, ":", 2)
		if len(parts) == 2 {
			cfg = cfg.WithCredentials(credentials.NewStaticCredentials(parts[0], parts[1], ""))
		}
	}
	return s3.New(session.Must(session.NewSession()), cfg)
}
