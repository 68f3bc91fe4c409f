package gallery

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"faceserver/config"
	"faceserver/db"
	"faceserver/faces"
	"faceserver/models"
	"faceserver/processing"
	"faceserver/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPipeline stands in for the dlib recognizer so the tests run
// without model files.
type stubPipeline struct {
	regions    []faces.Region
	vec        []float32
	detectErr  error
	extractErr error
}

func (s *stubPipeline) Detect(img *processing.Image, method faces.DetectMethod) ([]faces.Detection, error) {
	if s.detectErr != nil {
		return nil, s.detectErr
	}
	detections := make([]faces.Detection, len(s.regions))
	for i, r := range s.regions {
		detections[i] = faces.Detection{Region: r}
	}
	return detections, nil
}

func (s *stubPipeline) Extract(img *processing.Image, det faces.Detection, method faces.ExtractMethod) (faces.Descriptor, error) {
	if s.extractErr != nil {
		return faces.Descriptor{}, s.extractErr
	}
	return faces.Descriptor{Method: method, Vector: append([]float32(nil), s.vec...)}, nil
}

func unitVector(hot int) []float32 {
	vec := make([]float32, 128)
	vec[hot] = 1
	return vec
}

func testImage(t *testing.T, shade uint8) *processing.Image {
	t.Helper()
	pic := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			pic.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	img, err := processing.FromImage(pic)
	require.NoError(t, err)
	return img
}

func newTestGallery(t *testing.T) (*Gallery, *stubPipeline, storage.StorageAPI) {
	t.Helper()
	db.InitWithFile(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, db.Instance.AutoMigrate(&models.Face{}))

	bucket := storage.Bucket{Name: "disk", StorageType: storage.StorageTypeFile, Path: t.TempDir()}
	store := storage.NewDiskStorage(&bucket)
	pipeline := &stubPipeline{
		regions: []faces.Region{{Top: 10, Right: 50, Bottom: 50, Left: 10}},
		vec:     unitVector(0),
	}
	return New(store, pipeline), pipeline, store
}

func TestGallery_PutAndMatch(t *testing.T) {
	g, pipeline, store := newTestGallery(t)

	pipeline.vec = unitVector(0)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)
	pipeline.vec = unitVector(1)
	_, err = g.Put("Bob", testImage(t, 20))
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Bob"}, g.Names())
	assert.Greater(t, store.GetSize("known_faces/Alice.jpg"), int64(0))

	match, ok := g.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(0)}, config.FACE_MATCH_THRESHOLD)
	require.True(t, ok)
	assert.Equal(t, "Alice", match.Name)
	assert.InDelta(t, 0, match.Distance, 1e-9)
	assert.InDelta(t, 1, match.Confidence, 1e-9)

	// a distant query matches nothing
	_, ok = g.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(5)}, config.FACE_MATCH_THRESHOLD)
	assert.False(t, ok)
}

func TestGallery_MatchHistogramMethods(t *testing.T) {
	g, pipeline, _ := newTestGallery(t)
	pipeline.vec = unitVector(2)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	match, ok := g.Best(faces.Descriptor{Method: faces.MethodHOG, Vector: unitVector(2)}, config.FACE_MATCH_THRESHOLD)
	require.True(t, ok)
	assert.Equal(t, "Alice", match.Name)

	// a CNN query falls back to the stored dlib descriptor
	match, ok = g.Best(faces.Descriptor{Method: faces.MethodCNN, Vector: unitVector(2)}, config.FACE_MATCH_THRESHOLD)
	require.True(t, ok)
	assert.Equal(t, "Alice", match.Name)
}

func TestGallery_PutErrors(t *testing.T) {
	g, pipeline, _ := newTestGallery(t)

	_, err := g.Put("!!!", testImage(t, 10))
	assert.ErrorIs(t, err, ErrInvalidName)

	pipeline.regions = nil
	_, err = g.Put("Alice", testImage(t, 10))
	assert.ErrorIs(t, err, ErrNoFaceDetected)
	assert.Empty(t, g.Names())
}

func TestGallery_PutMultipleFaces(t *testing.T) {
	g, pipeline, _ := newTestGallery(t)
	pipeline.regions = []faces.Region{
		{Top: 0, Right: 20, Bottom: 20, Left: 0},
		{Top: 0, Right: 90, Bottom: 60, Left: 30},
	}

	config.REGISTER_SINGLE_FACE = true
	_, err := g.Put("Alice", testImage(t, 10))
	assert.ErrorIs(t, err, ErrMultipleFaces)
	config.REGISTER_SINGLE_FACE = false

	entry, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)
	// the largest face becomes the reference
	assert.Equal(t, faces.Region{Top: 0, Right: 90, Bottom: 60, Left: 30}, entry.Region)
}

func TestGallery_FailedExtractionKeepsPreviousEntry(t *testing.T) {
	g, pipeline, _ := newTestGallery(t)
	pipeline.vec = unitVector(3)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	pipeline.extractErr = errors.New("descriptor failure")
	_, err = g.Put("Alice", testImage(t, 99))
	require.Error(t, err)

	match, ok := g.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(3)}, config.FACE_MATCH_THRESHOLD)
	require.True(t, ok)
	assert.Equal(t, "Alice", match.Name)
}

func TestGallery_DeleteIsIdempotent(t *testing.T) {
	g, _, store := newTestGallery(t)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	deleted, err := g.Delete("Alice")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, int64(-1), store.GetSize("known_faces/Alice.jpg"))

	deleted, err = g.Delete("Alice")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGallery_OverwriteReplacesDescriptors(t *testing.T) {
	g, pipeline, _ := newTestGallery(t)
	pipeline.vec = unitVector(0)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)
	pipeline.vec = unitVector(7)
	_, err = g.Put("Alice", testImage(t, 200))
	require.NoError(t, err)

	assert.Equal(t, 1, g.Size())
	_, ok := g.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(0)}, config.FACE_MATCH_THRESHOLD)
	assert.False(t, ok, "old descriptor should be gone")
	match, ok := g.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(7)}, config.FACE_MATCH_THRESHOLD)
	require.True(t, ok)
	assert.Equal(t, "Alice", match.Name)
}

func TestGallery_LoadReusesDescriptorCache(t *testing.T) {
	g, pipeline, store := newTestGallery(t)
	pipeline.vec = unitVector(4)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	// A fresh gallery whose pipeline refuses to run: entries can only
	// come from the cached rows.
	broken := &stubPipeline{detectErr: errors.New("models unavailable")}
	reloaded := New(store, broken)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, []string{"Alice"}, reloaded.Names())
	match, ok := reloaded.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(4)}, config.FACE_MATCH_THRESHOLD)
	require.True(t, ok)
	assert.Equal(t, "Alice", match.Name)
}

func TestGallery_LoadSkipsUnreadableFiles(t *testing.T) {
	g, pipeline, store := newTestGallery(t)
	pipeline.vec = unitVector(4)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	// drop a non-image into the directory, it must not break loading
	_, err = store.Save("known_faces/garbage.jpg", bytes.NewReader([]byte("not an image")))
	require.NoError(t, err)

	reloaded := New(store, pipeline)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []string{"Alice"}, reloaded.Names())
}

// localizedStore counts the scratch-space materialization calls that
// remote backends rely on for descriptor extraction.
type localizedStore struct {
	storage.StorageAPI
	ensured  int
	released int
}

func (s *localizedStore) EnsureLocalFile(path string) error {
	s.ensured++
	return s.StorageAPI.EnsureLocalFile(path)
}

func (s *localizedStore) ReleaseLocalFile(path string) {
	s.released++
	s.StorageAPI.ReleaseLocalFile(path)
}

func TestGallery_LoadMaterializesFilesLocally(t *testing.T) {
	db.InitWithFile(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, db.Instance.AutoMigrate(&models.Face{}))
	bucket := storage.Bucket{Name: "disk", StorageType: storage.StorageTypeFile, Path: t.TempDir()}
	store := &localizedStore{StorageAPI: storage.NewDiskStorage(&bucket)}
	pipeline := &stubPipeline{
		regions: []faces.Region{{Top: 10, Right: 50, Bottom: 50, Left: 10}},
		vec:     unitVector(0),
	}
	g := New(store, pipeline)

	img := testImage(t, 10)
	_, err := store.Save("known_faces/Alice.jpg", bytes.NewReader(img.JPEG))
	require.NoError(t, err)

	// no cached rows exist, so loading must read the file through the
	// local materialization pair
	require.NoError(t, g.Load())
	assert.Equal(t, []string{"Alice"}, g.Names())
	assert.Equal(t, 1, store.ensured)
	assert.Equal(t, 1, store.released)
}

func TestGallery_MatchReportsRejectedCandidates(t *testing.T) {
	g, pipeline, _ := newTestGallery(t)
	pipeline.vec = unitVector(0)
	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	// distant query: the candidate is listed but not accepted
	matches := g.Match(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(5)}, config.FACE_MATCH_THRESHOLD)
	require.Len(t, matches, 1)
	assert.Equal(t, "Alice", matches[0].Name)
	assert.False(t, matches[0].Accepted)
	assert.Equal(t, faces.Region{Top: 10, Right: 50, Bottom: 50, Left: 10}, matches[0].Region)

	_, ok := g.Best(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(5)}, config.FACE_MATCH_THRESHOLD)
	assert.False(t, ok, "Best must skip rejected candidates")

	matches = g.Match(faces.Descriptor{Method: faces.MethodDlib, Vector: unitVector(0)}, config.FACE_MATCH_THRESHOLD)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Accepted)
}

// pausingStore blocks inside Move so tests can hold a Put mid-mutation.
type pausingStore struct {
	storage.StorageAPI
	pause   bool
	entered chan struct{}
	release chan struct{}
}

func (s *pausingStore) Move(src, dst string) error {
	if s.pause {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.StorageAPI.Move(src, dst)
}

func TestGallery_PutAndDeleteAreSerialized(t *testing.T) {
	db.InitWithFile(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, db.Instance.AutoMigrate(&models.Face{}))
	bucket := storage.Bucket{Name: "disk", StorageType: storage.StorageTypeFile, Path: t.TempDir()}
	store := &pausingStore{
		StorageAPI: storage.NewDiskStorage(&bucket),
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	pipeline := &stubPipeline{
		regions: []faces.Region{{Top: 10, Right: 50, Bottom: 50, Left: 10}},
		vec:     unitVector(0),
	}
	g := New(store, pipeline)

	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)

	// hold the second Put right after its file landed on disk
	store.pause = true
	putDone := make(chan error, 1)
	go func() {
		_, err := g.Put("Alice", testImage(t, 20))
		putDone <- err
	}()
	<-store.entered

	deleteDone := make(chan bool, 1)
	go func() {
		deleted, _ := g.Delete("Alice")
		deleteDone <- deleted
	}()

	select {
	case <-deleteDone:
		t.Fatal("Delete completed while a Put was mid-mutation")
	case <-time.After(100 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-putDone)
	assert.True(t, <-deleteDone)

	// the calls applied in sequence: entry and backing file agree
	assert.Empty(t, g.Names())
	assert.Equal(t, int64(-1), store.GetSize("known_faces/Alice.jpg"))
}

func TestGallery_ConcurrentPuts(t *testing.T) {
	g, _, _ := newTestGallery(t)
	img1, img2 := testImage(t, 10), testImage(t, 20)

	done := make(chan error, 2)
	go func() {
		_, err := g.Put("Alice", img1)
		done <- err
	}()
	go func() {
		_, err := g.Put("Bob", img2)
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"Alice", "Bob"}, g.Names())
	_, ok := g.Get("Alice")
	assert.True(t, ok)
	_, ok = g.Get("Bob")
	assert.True(t, ok)
}

func TestGallery_OnChange(t *testing.T) {
	g, _, _ := newTestGallery(t)
	changes := 0
	g.OnChange(func() { changes++ })

	_, err := g.Put("Alice", testImage(t, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	_, err = g.Delete("Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, changes)

	// deleting a missing name is not a change
	_, err = g.Delete("Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, changes)
}
