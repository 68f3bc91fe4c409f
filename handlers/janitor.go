package handlers

import (
	"log"
	"time"

	"faceserver/config"
	"faceserver/storage"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// trackedUploads maps result image names to their creation time so the
// janitor can expire them without re-statting every file each sweep.
var trackedUploads = cmap.New[time.Time]()

// sweepInterval is how often the janitor wakes up. A variable so tests
// can shorten it.
var sweepInterval = time.Hour

// TrackUpload registers a result image for expiry after UPLOAD_TTL_HOURS.
func TrackUpload(name string) {
	trackedUploads.Set(name, time.Now())
}

// StartUploadJanitor sweeps the uploads location periodically, removing
// result images older than the configured TTL. Files already present at
// startup are adopted with their mtime as creation time.
func StartUploadJanitor() {
	store := uploadsStorage()
	if files, err := store.List(storage.LocationUploads); err == nil {
		for _, f := range files {
			trackedUploads.Set(f.Name, f.ModTime)
		}
	}
	go func() {
		for {
			sweepUploads(store)
			time.Sleep(sweepInterval)
		}
	}()
}

func sweepUploads(store storage.StorageAPI) {
	ttl := time.Duration(config.UPLOAD_TTL_HOURS) * time.Hour
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for item := range trackedUploads.IterBuffered() {
		if item.Val.After(cutoff) {
			continue
		}
		if err := store.Delete(storage.LocationUploads + "/" + item.Key); err != nil {
			log.Printf("Warning: could not remove expired upload %s: %v", item.Key, err)
		}
		trackedUploads.Remove(item.Key)
		removed++
	}
	if removed > 0 {
		log.Printf("Upload janitor removed %d expired image(s)", removed)
	}
}
