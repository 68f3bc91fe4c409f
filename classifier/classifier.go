package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"faceserver/faces"
	"faceserver/processing"
)

var (
	ErrModelNotTrained = errors.New("classifier model is not trained")
	// ErrNotEnoughData means the gallery holds fewer than two identities.
	// A classifier with a single class cannot discriminate anything.
	ErrNotEnoughData = errors.New("need at least two registered faces to train")
)

// State tracks whether the trained model still reflects the gallery.
type State uint8

const (
	StateUntrained State = iota
	StateTrained
	// StateStale means the gallery changed after the last training run.
	// The model still predicts, but only over the classes it was
	// trained on.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateTrained:
		return "trained"
	case StateStale:
		return "stale"
	}
	return "untrained"
}

// Embedder produces face embeddings for training samples. Satisfied by
// *faces.Recognizer.
type Embedder interface {
	EmbedSingle(img *processing.Image) (faces.Descriptor, error)
}

// Model is a multinomial logistic regression head over the pretrained
// face embedding: one weight vector per registered identity, trained
// from a handful of augmented variants of each reference image.
type Model struct {
	mu       sync.RWMutex
	embedder Embedder
	path     string

	names     []string
	weights   [][]float64 // one row per class
	bias      []float64
	state     State
	trainedAt time.Time
}

// artifact is the on-disk JSON form of a trained model.
type artifact struct {
	Names     []string    `json:"names"`
	Weights   [][]float64 `json:"weights"`
	Bias      []float64   `json:"bias"`
	TrainedAt time.Time   `json:"trained_at"`
}

// New creates an untrained model persisting to modelsDir.
func New(embedder Embedder, modelsDir string) *Model {
	return &Model{
		embedder: embedder,
		path:     filepath.Join(modelsDir, "classifier.json"),
	}
}

// Predict scores an embedding descriptor against the trained classes
// and returns the best class with its softmax probability.
func (m *Model) Predict(desc faces.Descriptor) (string, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateUntrained {
		return "", 0, ErrModelNotTrained
	}
	if !faces.Comparable(desc.Method, faces.MethodDlib) {
		return "", 0, fmt.Errorf("%w: classifier scores embedding descriptors only", faces.ErrMethodMismatch)
	}
	if len(desc.Vector) != len(m.weights[0]) {
		return "", 0, fmt.Errorf("%w: vector size %d, expected %d", faces.ErrMethodMismatch, len(desc.Vector), len(m.weights[0]))
	}

	probs := softmaxLogits(m.weights, m.bias, desc.Vector)
	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return m.names[best], probs[best], nil
}

// MarkStale flags a trained model as out of date. Wired to the gallery
// change hook.
func (m *Model) MarkStale() {
	m.mu.Lock()
	if m.state == StateTrained {
		m.state = StateStale
		log.Print("Gallery changed, classifier model marked stale")
	}
	m.mu.Unlock()
}

// Status describes the model for the status endpoint.
type Status struct {
	State     string    `json:"state"`
	Classes   int       `json:"classes"`
	Names     []string  `json:"names,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
}

func (m *Model) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{State: m.state.String(), Classes: len(m.names)}
	if m.state != StateUntrained {
		st.Names = append([]string{}, m.names...)
		st.TrainedAt = m.trainedAt
	}
	return st
}

// save writes the model artifact. Called with the lock held.
func (m *Model) save() error {
	data, err := json.Marshal(artifact{
		Names:     m.names,
		Weights:   m.weights,
		Bias:      m.bias,
		TrainedAt: m.trainedAt,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0777); err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

// LoadFromDisk restores a previously trained model. If the persisted
// class list no longer matches the gallery the model comes back stale.
func (m *Model) LoadFromDisk(currentNames []string) error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return fmt.Errorf("corrupt classifier artifact %s: %w", m.path, err)
	}
	if len(art.Names) == 0 || len(art.Weights) != len(art.Names) || len(art.Bias) != len(art.Names) {
		return fmt.Errorf("corrupt classifier artifact %s: inconsistent shapes", m.path)
	}

	m.mu.Lock()
	m.names = art.Names
	m.weights = art.Weights
	m.bias = art.Bias
	m.trainedAt = art.TrainedAt
	if sameNames(art.Names, currentNames) {
		m.state = StateTrained
	} else {
		m.state = StateStale
	}
	m.mu.Unlock()
	log.Printf("Classifier model loaded (%d classes, %s)", len(art.Names), m.state)
	return nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string{}, a...)
	bs := append([]string{}, b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
