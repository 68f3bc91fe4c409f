package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"faceserver/config"
	"faceserver/db"
	"faceserver/faces"
	"faceserver/models"
	"faceserver/processing"
	"faceserver/storage"
	"faceserver/utils"

	"github.com/google/uuid"
)

var (
	ErrInvalidName    = errors.New("invalid name")
	ErrNoFaceDetected = errors.New("no face detected in image")
	ErrMultipleFaces  = errors.New("multiple faces detected in image")
)

// Pipeline is the descriptor computation the gallery depends on.
// Satisfied by *faces.Recognizer; tests substitute a stub so they run
// without the dlib models.
type Pipeline interface {
	Detect(img *processing.Image, method faces.DetectMethod) ([]faces.Detection, error)
	Extract(img *processing.Image, det faces.Detection, method faces.ExtractMethod) (faces.Descriptor, error)
}

// registerMethods are the descriptors computed for every registered
// face. MethodCNN shares the embedding space with MethodDlib, so CNN
// queries match against the dlib descriptor and need no row of their own.
var registerMethods = []faces.ExtractMethod{faces.MethodDlib, faces.MethodHOG, faces.MethodLBP}

// Entry is one registered identity: its reference image location and
// the descriptors precomputed from it.
type Entry struct {
	Name        string
	Region      faces.Region
	Path        string // relative to the storage bucket
	FileSize    int64
	FileModTime int64
	Descriptors map[faces.ExtractMethod]faces.Descriptor
}

// descriptorFor finds a stored descriptor comparable with the query
// method.
func (e *Entry) descriptorFor(method faces.ExtractMethod) (faces.Descriptor, bool) {
	if d, ok := e.Descriptors[method]; ok {
		return d, true
	}
	for _, d := range e.Descriptors {
		if faces.Comparable(d.Method, method) {
			return d, true
		}
	}
	return faces.Descriptor{}, false
}

// Gallery is the in-memory index of registered faces. The reference
// image directory is the source of truth; the database rows are only a
// descriptor cache to avoid re-running extraction on startup.
//
// Writers (Put, Delete, Load) are serialized end to end by writeMu so
// the backing file and the map entry always change together; mu guards
// the map itself for readers.
type Gallery struct {
	mu       sync.RWMutex
	writeMu  sync.Mutex
	entries  map[string]*Entry
	store    storage.StorageAPI
	pipeline Pipeline
	onChange []func()
}

func New(store storage.StorageAPI, pipeline Pipeline) *Gallery {
	return &Gallery{
		entries:  make(map[string]*Entry),
		store:    store,
		pipeline: pipeline,
	}
}

// OnChange registers a hook fired after every successful Put or Delete.
// Used to mark the trained classifier stale.
func (g *Gallery) OnChange(fn func()) {
	g.onChange = append(g.onChange, fn)
}

func (g *Gallery) notifyChange() {
	for _, fn := range g.onChange {
		fn()
	}
}

// Load scans the known faces directory and builds the in-memory index.
// Cached descriptor rows are reused when the file they were computed
// from is unchanged (same size and mtime); otherwise descriptors are
// recomputed and the cache refreshed. Files that fail to process are
// skipped with a warning so one bad image cannot take the service down.
func (g *Gallery) Load() error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	files, err := g.store.List(storage.LocationKnownFaces)
	if err != nil {
		log.Printf("Known faces location is empty or unreadable: %v", err)
		files = nil
	}

	var rows []models.Face
	if db.Instance != nil {
		if err := db.Instance.Find(&rows).Error; err != nil {
			log.Printf("Warning: could not read descriptor cache: %v", err)
		}
	}
	cached := map[string]map[string]models.Face{}
	for _, row := range rows {
		if cached[row.Name] == nil {
			cached[row.Name] = map[string]models.Face{}
		}
		cached[row.Name][row.Method] = row
	}

	entries := make(map[string]*Entry, len(files))
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}
		name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		path := storage.LocationKnownFaces + "/" + file.Name

		if entry, ok := entryFromCache(name, path, file, cached[name]); ok {
			entries[name] = entry
			continue
		}

		entry, err := g.processFile(name, path, file)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", file.Name, err)
			continue
		}
		entries[name] = entry
		g.persistCache(entry)
	}

	g.mu.Lock()
	g.entries = entries
	g.mu.Unlock()

	g.pruneCache(entries)
	log.Printf("Gallery loaded with %d known face(s)", len(entries))
	return nil
}

// entryFromCache rebuilds an entry from descriptor rows if every
// registration method is present and the rows match the current file.
func entryFromCache(name, path string, file storage.FileInfo, rows map[string]models.Face) (*Entry, bool) {
	if rows == nil {
		return nil, false
	}
	entry := &Entry{
		Name:        name,
		Path:        path,
		FileSize:    file.Size,
		FileModTime: file.ModTime.Unix(),
		Descriptors: make(map[faces.ExtractMethod]faces.Descriptor, len(registerMethods)),
	}
	for _, method := range registerMethods {
		row, ok := rows[method.String()]
		if !ok || row.FileSize != file.Size || row.FileModTime != file.ModTime.Unix() {
			return nil, false
		}
		entry.Descriptors[method] = faces.Descriptor{
			Method: method,
			Vector: utils.ByteArrayToFloat32Array(row.Descriptor),
		}
		entry.Region = faces.Region{Top: row.Top, Right: row.Right, Bottom: row.Bottom, Left: row.Left}
	}
	return entry, true
}

// readFile materializes the backing file locally (a download to scratch
// space for remote backends) and reads it.
func (g *Gallery) readFile(path string) ([]byte, error) {
	if err := g.store.EnsureLocalFile(path); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer g.store.ReleaseLocalFile(path)
	return os.ReadFile(g.store.GetFullPath(path))
}

// processFile reads one reference image and computes all registration
// descriptors from its primary face.
func (g *Gallery) processFile(name, path string, file storage.FileInfo) (*Entry, error) {
	data, err := g.readFile(path)
	if err != nil {
		return nil, err
	}
	img, err := processing.Decode(data)
	if err != nil {
		return nil, err
	}
	detections, err := g.pipeline.Detect(img, faces.DefaultDetectMethod())
	if err != nil {
		return nil, err
	}
	primary, ok := faces.PrimaryDetection(detections)
	if !ok {
		return nil, ErrNoFaceDetected
	}
	entry := &Entry{
		Name:        name,
		Region:      primary.Region,
		Path:        path,
		FileSize:    file.Size,
		FileModTime: file.ModTime.Unix(),
		Descriptors: make(map[faces.ExtractMethod]faces.Descriptor, len(registerMethods)),
	}
	for _, method := range registerMethods {
		desc, err := g.pipeline.Extract(img, primary, method)
		if err != nil {
			return nil, err
		}
		entry.Descriptors[method] = desc
	}
	return entry, nil
}

// Put registers (or re-registers) a face under the given name. The
// descriptors are computed before anything is written so a failed
// extraction leaves a previous registration untouched; the reference
// image is saved to a temporary name and moved into place afterwards
// for the same reason. The file write and the map update happen under
// the write lock as one mutation, so a concurrent Delete can never
// remove the file out from under the new entry.
func (g *Gallery) Put(name string, img *processing.Image) (*Entry, error) {
	sanitized := utils.SanitizeName(name)
	if sanitized == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	detections, err := g.pipeline.Detect(img, faces.DefaultDetectMethod())
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, ErrNoFaceDetected
	}
	if len(detections) > 1 && config.REGISTER_SINGLE_FACE {
		return nil, fmt.Errorf("%w: found %d", ErrMultipleFaces, len(detections))
	}
	primary, _ := faces.PrimaryDetection(detections)

	descriptors := make(map[faces.ExtractMethod]faces.Descriptor, len(registerMethods))
	for _, method := range registerMethods {
		desc, err := g.pipeline.Extract(img, primary, method)
		if err != nil {
			return nil, err
		}
		descriptors[method] = desc
	}

	g.writeMu.Lock()
	path := storage.LocationKnownFaces + "/" + sanitized + ".jpg"
	tmpPath := storage.LocationKnownFaces + "/.tmp-" + uuid.NewString() + ".jpg"
	if _, err := g.store.Save(tmpPath, bytes.NewReader(img.JPEG)); err != nil {
		g.writeMu.Unlock()
		return nil, fmt.Errorf("saving reference image: %w", err)
	}
	if err := g.store.Move(tmpPath, path); err != nil {
		_ = g.store.Delete(tmpPath)
		g.writeMu.Unlock()
		return nil, fmt.Errorf("saving reference image: %w", err)
	}

	entry := &Entry{
		Name:        sanitized,
		Region:      primary.Region,
		Path:        path,
		FileSize:    int64(len(img.JPEG)),
		FileModTime: time.Now().Unix(),
		Descriptors: descriptors,
	}
	if info, ok := g.statFile(sanitized + ".jpg"); ok {
		entry.FileSize = info.Size
		entry.FileModTime = info.ModTime.Unix()
	}

	g.mu.Lock()
	g.entries[sanitized] = entry
	g.mu.Unlock()

	g.persistCache(entry)
	g.writeMu.Unlock()

	g.notifyChange()
	return entry, nil
}

// Delete removes a registered face. Returns false when the name was not
// registered; deleting an unknown name is not an error. Held under the
// write lock for its whole duration so it cannot interleave with a Put
// on the same name.
func (g *Gallery) Delete(name string) (bool, error) {
	sanitized := utils.SanitizeName(name)

	g.writeMu.Lock()
	g.mu.Lock()
	entry, ok := g.entries[sanitized]
	if ok {
		delete(g.entries, sanitized)
	}
	g.mu.Unlock()
	if !ok {
		g.writeMu.Unlock()
		return false, nil
	}

	if err := g.store.Delete(entry.Path); err != nil {
		log.Printf("Warning: could not delete %s: %v", entry.Path, err)
	}
	if db.Instance != nil {
		if err := db.Instance.Where("name = ?", sanitized).Delete(&models.Face{}).Error; err != nil {
			log.Printf("Warning: could not delete cached descriptors for %s: %v", sanitized, err)
		}
	}
	g.writeMu.Unlock()

	g.notifyChange()
	return true, nil
}

// Names returns the registered names in sorted order.
func (g *Gallery) Names() []string {
	g.mu.RLock()
	names := make([]string, 0, len(g.entries))
	for name := range g.entries {
		names = append(names, name)
	}
	g.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Get returns a copy of the entry for the given name.
func (g *Gallery) Get(name string) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entry, ok := g.entries[utils.SanitizeName(name)]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Snapshot returns a copy of all entries, sorted by name. Used by the
// classifier to iterate training samples without holding the lock.
func (g *Gallery) Snapshot() []Entry {
	g.mu.RLock()
	entries := make([]Entry, 0, len(g.entries))
	for _, e := range g.entries {
		entries = append(entries, *e)
	}
	g.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// LoadImage reads and decodes the reference image of a registered face.
func (g *Gallery) LoadImage(name string) (*processing.Image, error) {
	entry, ok := g.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", ErrInvalidName, name)
	}
	data, err := g.readFile(entry.Path)
	if err != nil {
		return nil, err
	}
	return processing.Decode(data)
}

// persistCache upserts the descriptor rows for one entry. Cache errors
// are logged but never fail the operation; the cache is advisory.
func (g *Gallery) persistCache(entry *Entry) {
	if db.Instance == nil {
		return
	}
	now := time.Now().Unix()
	for method, desc := range entry.Descriptors {
		row := models.Face{
			CreatedAt:   now,
			UpdatedAt:   now,
			Name:        entry.Name,
			Method:      method.String(),
			Descriptor:  utils.Float32ArrayToByteArray(desc.Vector),
			Top:         entry.Region.Top,
			Right:       entry.Region.Right,
			Bottom:      entry.Region.Bottom,
			Left:        entry.Region.Left,
			Path:        entry.Path,
			FileSize:    entry.FileSize,
			FileModTime: entry.FileModTime,
		}
		err := db.Instance.Where("name = ? AND method = ?", row.Name, row.Method).Delete(&models.Face{}).Error
		if err == nil {
			err = db.Instance.Create(&row).Error
		}
		if err != nil {
			log.Printf("Warning: could not cache descriptor %s/%s: %v", row.Name, row.Method, err)
		}
	}
}

// pruneCache drops cached rows for names no longer present on disk.
func (g *Gallery) pruneCache(entries map[string]*Entry) {
	if db.Instance == nil {
		return
	}
	var rows []models.Face
	if err := db.Instance.Select("id", "name").Find(&rows).Error; err != nil {
		return
	}
	for _, row := range rows {
		if _, ok := entries[row.Name]; !ok {
			if err := db.Instance.Delete(&models.Face{}, row.ID).Error; err != nil {
				log.Printf("Warning: could not prune cached descriptor %d: %v", row.ID, err)
			}
		}
	}
}

func (g *Gallery) statFile(fileName string) (storage.FileInfo, bool) {
	files, err := g.store.List(storage.LocationKnownFaces)
	if err != nil {
		return storage.FileInfo{}, false
	}
	for _, f := range files {
		if f.Name == fileName {
			return f, true
		}
	}
	return storage.FileInfo{}, false
}
