// Package pipeline turns uploaded images into persisted detections. The
// upload phase is synchronous; inference runs on a worker pool so device
// upload latency stays decoupled from classifier latency.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"plant-monitor-backend/internal/blob"
	"plant-monitor-backend/internal/classifier"
	"plant-monitor-backend/internal/labelmap"
	"plant-monitor-backend/internal/model"
	"plant-monitor-backend/internal/store"
)

// Validation errors surfaced to the uploader.
var (
	ErrEmptyImage       = errors.New("empty image buffer")
	ErrUnsupportedImage = errors.New("buffer is not a JPEG or PNG image")
)

// ErrUpstream marks a blob-store failure in the synchronous upload phase.
var ErrUpstream = errors.New("blob store failure")

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// ValidateImageBytes rejects empty buffers and unknown signatures.
func ValidateImageBytes(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyImage
	}
	if !bytes.HasPrefix(data, jpegMagic) && !bytes.HasPrefix(data, pngMagic) {
		return ErrUnsupportedImage
	}
	return nil
}

// Service orchestrates upload, inference caching, label mapping and
// detection persistence.
type Service struct {
	size       int
	jobs       chan string // image IDs awaiting inference
	store      store.Store
	blobs      blob.Store
	classifier classifier.Classifier
	mapper     *labelmap.Mapper
}

// NewService creates a detection pipeline with a pool of `size` workers.
// A nil classifier disables inference; uploads still persist.
func NewService(size int, s store.Store, b blob.Store, c classifier.Classifier, m *labelmap.Mapper) *Service {
	return &Service{
		size:       size,
		jobs:       make(chan string, size*4),
		store:      s,
		blobs:      b,
		classifier: c,
		mapper:     m,
	}
}

// Start launches the inference worker goroutines.
func (p *Service) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

func (p *Service) worker(ctx context.Context, id int) {
	log.Printf("inference worker %d started", id)
	for {
		select {
		case imageID := <-p.jobs:
			p.runGuarded(ctx, imageID)
		case <-ctx.Done():
			log.Printf("inference worker %d shutting down", id)
			return
		}
	}
}

// runGuarded keeps a single bad job from taking the worker down.
func (p *Service) runGuarded(ctx context.Context, imageID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("inference for image %s panicked: %v", imageID, r)
		}
	}()
	p.RunInference(ctx, imageID)
}

// SubmitImage validates and stores an uploaded image, persists its record
// and dispatches inference. It returns as soon as the image is durable; the
// caller sees an empty detection list and processing=true.
func (p *Service) SubmitImage(ctx context.Context, deviceID string, data []byte, capturedAt time.Time) (*model.Image, error) {
	if err := ValidateImageBytes(data); err != nil {
		return nil, err
	}

	stored, err := p.blobs.Store(ctx, deviceID, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	img := &model.Image{
		DeviceID:   deviceID,
		URL:        stored.URL,
		Width:      stored.Width,
		Height:     stored.Height,
		ByteSize:   stored.ByteSize,
		CapturedAt: capturedAt,
	}
	if err := p.store.CreateImage(ctx, img); err != nil {
		return nil, err
	}

	p.Dispatch(img.ID)
	return img, nil
}

// Dispatch queues an image for inference without blocking the caller.
// A full queue only delays inference: the image record exists and the job
// can be re-dispatched later.
func (p *Service) Dispatch(imageID string) {
	if p.classifier == nil {
		return
	}
	select {
	case p.jobs <- imageID:
	default:
		log.Printf("inference queue full, image %s left for retry", imageID)
	}
}

// RunInference performs the asynchronous phase for one image. It is
// idempotent: once a cached result exists it is a no-op, which bounds the
// provider cost to one call per image. Failures are logged and cached, never
// propagated; the triggering request has already returned.
func (p *Service) RunInference(ctx context.Context, imageID string) {
	cached, err := p.store.GetInferenceResult(ctx, imageID)
	if err != nil {
		log.Printf("inference cache check failed for image %s: %v", imageID, err)
		return
	}
	if cached != nil {
		return
	}

	img, err := p.store.GetImage(ctx, imageID)
	if err != nil {
		log.Printf("failed to load image %s for inference: %v", imageID, err)
		return
	}

	res := model.InferenceResult{
		ImageID:  imageID,
		Provider: p.classifier.Provider(),
	}
	raw, cerr := p.classifier.Classify(ctx, img.URL)
	if cerr != nil {
		// Failures are cached too so a flaky provider is not hammered on
		// retry. Recovery is a separate maintenance concern.
		res.Failed = true
		res.Error = cerr.Error()
	} else {
		res.RawResponse = string(raw)
	}

	created, err := p.store.CreateInferenceResult(ctx, &res)
	if err != nil {
		log.Printf("failed to cache inference result for image %s: %v", imageID, err)
		return
	}
	if !created {
		return // another trigger won the race; its result stands
	}
	if res.Failed {
		log.Printf("classifier failed for image %s: %s", imageID, res.Error)
		return
	}

	predictions := classifier.Normalize(raw)
	if len(predictions) == 0 {
		log.Printf("no detections for image %s", imageID)
		return
	}

	dominant := 0
	for i, pred := range predictions {
		if pred.Confidence > predictions[dominant].Confidence {
			dominant = i
		}
	}

	detections := make([]model.Detection, 0, len(predictions))
	for i, pred := range predictions {
		det := model.Detection{
			ImageID:    imageID,
			Label:      pred.Label,
			Confidence: pred.Confidence,
			IsDominant: i == dominant,
		}
		if len(pred.BBox) > 0 {
			if b, err := json.Marshal(pred.BBox); err == nil {
				det.BoundingBox = string(b)
			}
		}

		resolution, err := p.mapper.Resolve(ctx, pred.Label, pred.Confidence)
		if err != nil {
			log.Printf("label resolution failed for %q: %v", pred.Label, err)
		} else if resolution.Matched {
			det.PlantProfileID = resolution.ProfileID
		}
		detections = append(detections, det)
	}

	if err := p.store.CreateDetections(ctx, detections); err != nil {
		log.Printf("failed to persist detections for image %s: %v", imageID, err)
		return
	}
	log.Printf("image %s: %d detection(s), dominant %q", imageID, len(detections), predictions[dominant].Label)
}
