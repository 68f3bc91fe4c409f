package models

// Face is a cached descriptor for one registered identity. The reference
// image directory remains the source of truth: rows are validated against
// the file's size and mtime on startup and recomputed when they diverge.
// One row exists per (Name, Method) pair.
type Face struct {
	ID          uint64 `gorm:"primaryKey"`
	CreatedAt   int64
	UpdatedAt   int64
	Name        string `gorm:"type:varchar(300);index:uniq_name_method,unique;priority:1"`
	Method      string `gorm:"type:varchar(20);index:uniq_name_method,unique;priority:2"`
	Descriptor  []byte `gorm:"type:blob"` // little-endian float32 vector
	Top         int
	Right       int
	Bottom      int
	Left        int
	Path        string // relative to the storage bucket, e.g. known_faces/Alice.jpg
	FileSize    int64
	FileModTime int64
}
