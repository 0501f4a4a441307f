package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"plant-monitor-backend/internal/blob"
	"plant-monitor-backend/internal/labelmap"
	"plant-monitor-backend/internal/model"
	"plant-monitor-backend/internal/store"
)

// fakeBlobStore records uploads without touching disk.
type fakeBlobStore struct {
	stored int
}

func (f *fakeBlobStore) Store(ctx context.Context, deviceID string, data []byte) (*blob.Stored, error) {
	f.stored++
	return &blob.Stored{
		URL:      fmt.Sprintf("http://blobs.test/%s/%d.jpg", deviceID, f.stored),
		Width:    1024,
		Height:   768,
		ByteSize: int64(len(data)),
	}, nil
}

// fakeClassifier counts calls and returns a canned response or error.
type fakeClassifier struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (f *fakeClassifier) Classify(ctx context.Context, imageURL string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func (f *fakeClassifier) Provider() string { return "fake" }

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, fc *fakeClassifier) (*Service, store.Store) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Image{}, &model.InferenceResult{}, &model.Detection{},
		&model.PlantProfile{}, &model.PlantAlias{},
	))

	profile := model.PlantProfile{Name: "Ocimum basilicum", CommonName: "Basil"}
	require.NoError(t, db.Create(&profile).Error)
	require.NoError(t, db.Create(&model.PlantAlias{
		Alias:          "basil",
		PlantProfileID: profile.ID,
		MinConfidence:  0.7,
	}).Error)

	s := store.NewGormStore(db)
	return NewService(1, s, &fakeBlobStore{}, fc, labelmap.NewMapper(s)), s
}

// minimal JPEG-signature buffer; the fake blob store never decodes it.
var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestSubmitImage_Validation(t *testing.T) {
	svc, _ := newTestService(t, &fakeClassifier{})
	ctx := context.Background()

	_, err := svc.SubmitImage(ctx, "dev-1", nil, time.Now())
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = svc.SubmitImage(ctx, "dev-1", []byte("not an image"), time.Now())
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestSubmitImage_ReturnsBeforeInference(t *testing.T) {
	svc, s := newTestService(t, &fakeClassifier{response: `[{"label":"basil","score":0.9}]`})
	ctx := context.Background()

	img, err := svc.SubmitImage(ctx, "dev-1", jpegBytes, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, img.ID)
	assert.NotEmpty(t, img.URL)
	assert.Empty(t, img.Detections)

	// No worker is running: the synchronous phase must not have inferred.
	res, err := s.GetInferenceResult(ctx, img.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRunInference_AtMostOnce(t *testing.T) {
	fc := &fakeClassifier{response: `[{"label":"basil","score":0.9}]`}
	svc, s := newTestService(t, fc)
	ctx := context.Background()

	img, err := svc.SubmitImage(ctx, "dev-1", jpegBytes, time.Now())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		svc.RunInference(ctx, img.ID)
	}

	assert.Equal(t, 1, fc.callCount())

	var count int64
	s.DB().Model(&model.InferenceResult{}).Where("image_id = ?", img.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRunInference_DominantAndLinking(t *testing.T) {
	fc := &fakeClassifier{response: `[
		{"label":"mint","score":0.2},
		{"label":"basil","score":0.75},
		{"label":"fern","score":0.75}
	]`}
	svc, s := newTestService(t, fc)
	ctx := context.Background()

	img, err := svc.SubmitImage(ctx, "dev-1", jpegBytes, time.Now())
	require.NoError(t, err)
	svc.RunInference(ctx, img.ID)

	var detections []model.Detection
	require.NoError(t, s.DB().Where("image_id = ?", img.ID).Order("id ASC").Find(&detections).Error)
	require.Len(t, detections, 3)

	// Ties break by first-seen order: basil wins over fern.
	dominant, err := s.DominantDetection(ctx, img.ID)
	require.NoError(t, err)
	require.NotNil(t, dominant)
	assert.Equal(t, "basil", dominant.Label)

	// basil is above its alias confidence gate, so it links to a profile;
	// mint and fern stay unlinked.
	assert.NotNil(t, dominant.PlantProfileID)
	assert.Nil(t, detections[0].PlantProfileID)
	assert.Nil(t, detections[2].PlantProfileID)
}

func TestRunInference_CachesFailures(t *testing.T) {
	fc := &fakeClassifier{err: errors.New("provider unavailable")}
	svc, s := newTestService(t, fc)
	ctx := context.Background()

	img, err := svc.SubmitImage(ctx, "dev-1", jpegBytes, time.Now())
	require.NoError(t, err)

	svc.RunInference(ctx, img.ID)
	svc.RunInference(ctx, img.ID)

	// The failure was cached after the first call; the provider is not
	// hammered on retry.
	assert.Equal(t, 1, fc.callCount())

	res, err := s.GetInferenceResult(ctx, img.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Error, "provider unavailable")

	var count int64
	s.DB().Model(&model.Detection{}).Where("image_id = ?", img.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRunInference_UnrecognizedShapeYieldsNoDetections(t *testing.T) {
	fc := &fakeClassifier{response: `{"status":"ok"}`}
	svc, s := newTestService(t, fc)
	ctx := context.Background()

	img, err := svc.SubmitImage(ctx, "dev-1", jpegBytes, time.Now())
	require.NoError(t, err)
	svc.RunInference(ctx, img.ID)

	res, err := s.GetInferenceResult(ctx, img.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Failed)

	var count int64
	s.DB().Model(&model.Detection{}).Where("image_id = ?", img.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestWorkerProcessesDispatchedImages(t *testing.T) {
	fc := &fakeClassifier{response: `[{"label":"basil","score":0.9}]`}
	svc, s := newTestService(t, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	img, err := svc.SubmitImage(ctx, "dev-1", jpegBytes, time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err := s.GetInferenceResult(ctx, img.ID)
		return err == nil && res != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, fc.callCount())
}
