package classifier

import (
	"fmt"
	"log"
	"math"
	"time"

	"faceserver/gallery"
	"faceserver/processing"

	"github.com/nfnt/resize"
)

const (
	trainEpochs       = 300
	trainLearningRate = 0.5
	trainWeightDecay  = 1e-4
	// trainCropSize normalizes all face crops before augmentation so
	// brightness and mirror variants embed from identical geometry.
	trainCropSize = 160
)

// brightnessVariants are applied to each face crop alongside the
// original and its mirror to stretch a single reference image into a
// small training set.
var brightnessVariants = []float64{0.8, 1.2}

// Train fits the classifier on the current gallery. Each identity
// contributes its reference face crop plus augmented variants, every
// variant re-embedded through the pretrained network. Fails with
// ErrNotEnoughData below two identities.
func (m *Model) Train(g *gallery.Gallery) error {
	entries := g.Snapshot()
	if len(entries) < 2 {
		return fmt.Errorf("%w: have %d", ErrNotEnoughData, len(entries))
	}

	started := time.Now()
	names := make([]string, 0, len(entries))
	var samples [][]float32
	var labels []int
	for i, entry := range entries {
		names = append(names, entry.Name)
		vectors, err := m.sampleVectors(g, entry)
		if err != nil {
			return fmt.Errorf("preparing samples for %s: %w", entry.Name, err)
		}
		for _, vec := range vectors {
			samples = append(samples, vec)
			labels = append(labels, i)
		}
	}

	weights, bias := fitSoftmax(samples, labels, len(names))

	m.mu.Lock()
	m.names = names
	m.weights = weights
	m.bias = bias
	m.state = StateTrained
	m.trainedAt = time.Now()
	err := m.save()
	m.mu.Unlock()
	if err != nil {
		log.Printf("Warning: could not persist classifier model: %v", err)
	}
	log.Printf("Classifier trained on %d classes, %d samples in %v", len(names), len(samples), time.Since(started).Round(time.Millisecond))
	return nil
}

// sampleVectors embeds the augmentation variants of one identity's
// reference face. Variants that fail to embed (e.g. a mirror where the
// landmark fit gives up) are skipped as long as the original succeeds.
func (m *Model) sampleVectors(g *gallery.Gallery, entry gallery.Entry) ([][]float32, error) {
	img, err := g.LoadImage(entry.Name)
	if err != nil {
		return nil, err
	}
	crop := resize.Resize(trainCropSize, trainCropSize,
		processing.Crop(img.Pixels, entry.Region.Padded(0.25, img.Pixels.Bounds()).Rect()),
		resize.Lanczos3)

	variants := []processing.Image{}
	base, err := processing.FromImage(crop)
	if err != nil {
		return nil, err
	}
	variants = append(variants, *base)
	if flipped, err := processing.FromImage(processing.FlipHorizontal(crop)); err == nil {
		variants = append(variants, *flipped)
	}
	for _, factor := range brightnessVariants {
		if adjusted, err := processing.FromImage(processing.AdjustBrightness(crop, factor)); err == nil {
			variants = append(variants, *adjusted)
		}
	}

	vectors := make([][]float32, 0, len(variants))
	for i := range variants {
		desc, err := m.embedder.EmbedSingle(&variants[i])
		if err != nil {
			if i == 0 {
				return nil, err
			}
			continue
		}
		vectors = append(vectors, desc.Vector)
	}
	return vectors, nil
}

// fitSoftmax runs full-batch gradient descent on the cross-entropy
// loss. The sample counts are tiny (a few per identity) so there is no
// need for anything fancier.
func fitSoftmax(samples [][]float32, labels []int, classes int) ([][]float64, []float64) {
	dim := len(samples[0])
	weights := make([][]float64, classes)
	for c := range weights {
		weights[c] = make([]float64, dim)
	}
	bias := make([]float64, classes)

	gradW := make([][]float64, classes)
	for c := range gradW {
		gradW[c] = make([]float64, dim)
	}
	gradB := make([]float64, classes)

	for epoch := 0; epoch < trainEpochs; epoch++ {
		for c := range gradW {
			for i := range gradW[c] {
				gradW[c][i] = 0
			}
			gradB[c] = 0
		}
		for s, vec := range samples {
			probs := softmaxLogits(weights, bias, vec)
			for c := range probs {
				diff := probs[c]
				if c == labels[s] {
					diff -= 1
				}
				for i, v := range vec {
					gradW[c][i] += diff * float64(v)
				}
				gradB[c] += diff
			}
		}
		scale := trainLearningRate / float64(len(samples))
		for c := range weights {
			for i := range weights[c] {
				weights[c][i] -= scale*gradW[c][i] + trainLearningRate*trainWeightDecay*weights[c][i]
			}
			bias[c] -= scale * gradB[c]
		}
	}
	return weights, bias
}

func softmaxLogits(weights [][]float64, bias []float64, vec []float32) []float64 {
	logits := make([]float64, len(weights))
	for c, w := range weights {
		sum := bias[c]
		for i, v := range vec {
			sum += w[i] * float64(v)
		}
		logits[c] = sum
	}
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	var total float64
	for c := range logits {
		logits[c] = math.Exp(logits[c] - max)
		total += logits[c]
	}
	for c := range logits {
		logits[c] /= total
	}
	return logits
}
