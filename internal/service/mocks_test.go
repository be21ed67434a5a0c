package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/fingerprint"
	"github.com/uptube/content-ingestion-go/internal/metrics"
	"github.com/uptube/content-ingestion-go/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// uploadFunc lets a MockBlobStore expectation compute its result per call.
type uploadFunc func(path string, kind models.ResourceKind) (storage.UploadResult, error)

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Upload(ctx context.Context, localPath string, kind models.ResourceKind) (storage.UploadResult, error) {
	args := m.Called(ctx, localPath, kind)
	if fn, ok := args.Get(0).(uploadFunc); ok {
		return fn(localPath, kind)
	}
	return args.Get(0).(storage.UploadResult), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, ref models.BlobRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, sourcePath string) (string, error) {
	args := m.Called(ctx, sourcePath)
	return args.String(0), args.Error(1)
}

// recordingScheduler captures scheduled fan-outs.
type recordingScheduler struct {
	mu     sync.Mutex
	events []fanout.Event
}

func (s *recordingScheduler) Schedule(_ context.Context, event fanout.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingScheduler) scheduled() []fanout.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fanout.Event(nil), s.events...)
}

// recordingPublisher captures lifecycle events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store     *memStore
	blobs     *MockBlobStore
	generator *MockGenerator
	scheduler *recordingScheduler
	events    *recordingPublisher
	metrics   *metrics.Metrics
	upload    *UploadOrchestrator
	deleter   *DeleteOrchestrator
	content   *ContentService
	dir       string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     newMemStore(),
		blobs:     new(MockBlobStore),
		generator: new(MockGenerator),
		scheduler: &recordingScheduler{},
		events:    &recordingPublisher{},
		metrics:   metrics.NewNop(),
		dir:       t.TempDir(),
	}
	repos := h.store.repos()
	logger := zap.NewNop()

	h.upload = NewUploadOrchestrator(UploadDeps{
		Repos:     repos,
		Hasher:    fingerprint.NewHasher(16),
		Blobs:     h.blobs,
		Generator: h.generator,
		Fanout:    h.scheduler,
		Events:    h.events,
		Metrics:   h.metrics,
		Logger:    logger,
	})
	h.deleter = NewDeleteOrchestrator(DeleteDeps{
		Tx:      h.store,
		Repos:   repos,
		Blobs:   h.blobs,
		Events:  h.events,
		Metrics: h.metrics,
		Logger:  logger,
	})
	h.content = NewContentService(ContentDeps{
		Tx:      h.store,
		Repos:   repos,
		Blobs:   h.blobs,
		Fanout:  h.scheduler,
		Events:  h.events,
		Metrics: h.metrics,
		Logger:  logger,
	})
	return h
}

// stage writes a temp file into the harness directory.
func (h *harness) stage(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func blobRef(kind models.ResourceKind) models.BlobRef {
	id := uuid.NewString()
	return models.BlobRef{
		Locator:      "http://blobs.local/media/" + id,
		ExternalID:   id,
		ResourceKind: kind,
	}
}

// freshRefs returns an upload result with a new blob per call.
func freshRefs() uploadFunc {
	return func(_ string, kind models.ResourceKind) (storage.UploadResult, error) {
		return storage.UploadResult{Ref: blobRef(kind)}, nil
	}
}

func digestOf(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// seedItem stores a published video with a primary and derived blob.
func (h *harness) seedItem(owner uuid.UUID, fingerprint string) *models.ContentItem {
	item := models.NewContentItem(owner, "Seeded", "seeded item", models.KindVideo, true)
	item.PrimaryBlob = blobRef(models.ResourceVideo)
	derived := blobRef(models.ResourceImage)
	item.DerivedBlob = &derived
	if fingerprint != "" {
		item.Fingerprint = &fingerprint
	}
	h.store.putItem(item)
	return item
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
