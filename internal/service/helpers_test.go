package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stickergen/internal/domain"
	"github.com/timmy/stickergen/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createPendingJob(t *testing.T, jobs *repository.JobRepository, userID, prompt string) *domain.Job {
	t.Helper()
	job := &domain.Job{ID: uuid.NewString(), UserID: userID, Prompt: prompt, Status: domain.JobStatusPending}
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

// pngBase64 returns a small valid PNG, base64 encoded.
func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// fakeGenerator is an ImageGenerator driven by a function.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	calls   int32
	fn      func(ctx context.Context, prompt string, n int) (*GenerationResult, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, n int) (*GenerationResult, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.fn(ctx, prompt, n)
}

func (g *fakeGenerator) Calls() int {
	return int(atomic.LoadInt32(&g.calls))
}

func (g *fakeGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func staticImages(t *testing.T, n int) func(ctx context.Context, prompt string, want int) (*GenerationResult, error) {
	b64 := pngBase64(t, 8, 8)
	return func(ctx context.Context, prompt string, want int) (*GenerationResult, error) {
		res := &GenerationResult{GenerationID: "gpt-image-1_1700000000000", Model: "gpt-image-1", Size: "1024x1024"}
		for i := 0; i < n; i++ {
			res.Images = append(res.Images, GeneratedImage{B64JSON: b64})
		}
		return res, nil
	}
}

// memStorage is an in-memory ObjectStorage.
type memStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	failKey  func(key string) bool
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, cur) {
			break
		}
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.failKey != nil && s.failKey(key) {
		return fmt.Errorf("bucket unavailable")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *memStorage) GetURL(key string) string {
	return "https://cdn.example.com/" + key
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// failingMarkErrorStore wraps a JobStore and fails MarkError.
type failingMarkErrorStore struct {
	JobStore
	attempts int32
}

func (s *failingMarkErrorStore) MarkError(ctx context.Context, id, msg string) error {
	atomic.AddInt32(&s.attempts, 1)
	return fmt.Errorf("database is locked")
}

// recordingScheduler captures tasks instead of running them.
type recordingScheduler struct {
	mu     sync.Mutex
	tasks  []func(ctx context.Context) error
	names  []string
	refuse bool
}

func (s *recordingScheduler) Go(name string, fn func(ctx context.Context) error) bool {
	if s.refuse {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.tasks = append(s.tasks, fn)
	return true
}

func (s *recordingScheduler) RunAll(ctx context.Context) {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, fn := range tasks {
		_ = fn(ctx)
	}
}
