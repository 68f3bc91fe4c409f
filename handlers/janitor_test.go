package handlers

import (
	"bytes"
	"testing"
	"time"

	"faceserver/config"
	"faceserver/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepUploads_RemovesExpiredImages(t *testing.T) {
	bucket := storage.Bucket{Name: "disk", StorageType: storage.StorageTypeFile, Path: t.TempDir()}
	store := storage.NewDiskStorage(&bucket)

	_, err := store.Save(storage.LocationUploads+"/result_old.jpg", bytes.NewReader([]byte("old")))
	require.NoError(t, err)
	_, err = store.Save(storage.LocationUploads+"/result_new.jpg", bytes.NewReader([]byte("new")))
	require.NoError(t, err)

	ttl := time.Duration(config.UPLOAD_TTL_HOURS) * time.Hour
	trackedUploads.Set("result_old.jpg", time.Now().Add(-ttl-time.Hour))
	trackedUploads.Set("result_new.jpg", time.Now())
	t.Cleanup(func() {
		trackedUploads.Remove("result_old.jpg")
		trackedUploads.Remove("result_new.jpg")
	})

	sweepUploads(store)

	assert.Equal(t, int64(-1), store.GetSize(storage.LocationUploads+"/result_old.jpg"))
	assert.Greater(t, store.GetSize(storage.LocationUploads+"/result_new.jpg"), int64(0))
	assert.False(t, trackedUploads.Has("result_old.jpg"))
	assert.True(t, trackedUploads.Has("result_new.jpg"))
}
