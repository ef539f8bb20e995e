package recordings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	recs       []models.Recording
	nextID     int64
	failCreate bool
}

func (f *fakeStore) Create(ctx context.Context, rec *models.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return fmt.Errorf("insert failed")
	}
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now()
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeStore) List(ctx context.Context) ([]models.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Recording, len(f.recs))
	copy(out, f.recs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*models.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.ID == id {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

type fakeCleanupQueue struct {
	mu       sync.Mutex
	payloads []queue.BlobCleanupPayload
}

func (f *fakeCleanupQueue) EnqueueBlobCleanup(ctx context.Context, p queue.BlobCleanupPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

// signingStore fakes an S3-style store: blobs are fetched by URL.
type signingStore struct{}

func (signingStore) Save(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://bucket.example.com/recordings/" + name, nil
}

func (signingStore) Delete(ctx context.Context, location string) error { return nil }

func (signingStore) PresignURL(ctx context.Context, location string) (string, error) {
	return location + "?signature=abc", nil
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/recordings", h.Upload)
	r.GET("/api/recordings", h.List)
	r.GET("/api/recordings/:id", h.GetByID)
	return r
}

func newLocalHandler(t *testing.T, store Store) *Handler {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	return NewHandler(store, blobs, nil)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRecording(t *testing.T, r *gin.Engine, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/recordings", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadCreatesBlobThenRow(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(newLocalHandler(t, store))

	payload := bytes.Repeat([]byte("abc123"), 700)
	w := uploadRecording(t, r, "video", "demo.mp4", payload)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Message   string           `json:"message"`
		Recording models.Recording `json:"recording"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(len(payload)), resp.Recording.Filesize)
	assert.True(t, strings.HasSuffix(resp.Recording.Filename, "_demo.mp4"))
	assert.NotZero(t, resp.Recording.ID)

	require.Len(t, store.recs, 1)
	stored, err := os.ReadFile(store.recs[0].Location)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, stored))
}

func TestUploadMissingFileField(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(newLocalHandler(t, store))

	w := uploadRecording(t, r, "file", "demo.mp4", []byte("data"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Empty(t, store.recs)
}

func TestUploadInsertFailureEnqueuesCleanup(t *testing.T) {
	store := &fakeStore{failCreate: true}
	h := newLocalHandler(t, store)
	cleanup := &fakeCleanupQueue{}
	h.SetCleanupQueue(cleanup)
	r := newTestRouter(h)

	w := uploadRecording(t, r, "video", "demo.mp4", []byte("orphan bytes"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, cleanup.payloads, 1)
	// The blob was durably written before the insert; the queue points the
	// worker at it.
	_, err := os.Stat(cleanup.payloads[0].Location)
	assert.NoError(t, err)
}

func TestListNewestFirst(t *testing.T) {
	store := &fakeStore{}
	h := newLocalHandler(t, store)
	r := newTestRouter(h)

	for i := 0; i < 3; i++ {
		w := uploadRecording(t, r, "video", fmt.Sprintf("clip%d.mp4", i), []byte("x"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/recordings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1].ID, list[i].ID)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	r := newTestRouter(newLocalHandler(t, &fakeStore{}))

	req := httptest.NewRequest(http.MethodGet, "/api/recordings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestGetUnknownID(t *testing.T) {
	r := newTestRouter(newLocalHandler(t, &fakeStore{}))

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInvalidID(t *testing.T) {
	r := newTestRouter(newLocalHandler(t, &fakeStore{}))

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/not-a-number", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLocalStreamsWithRange(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(newLocalHandler(t, store))

	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i)
	}
	w := uploadRecording(t, r, "video", "seek.mp4", payload)
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/1", nil)
	req.Header.Set("Range", "bytes=0-99")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 0-99/2048", w.Header().Get("Content-Range"))
	assert.Equal(t, "100", w.Header().Get("Content-Length"))
	assert.True(t, bytes.Equal(payload[:100], w.Body.Bytes()))
}

func TestGetRemoteReturnsSignedURL(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, signingStore{}, nil)
	r := newTestRouter(h)

	w := uploadRecording(t, r, "video", "remote.mp4", []byte("remote bytes"))
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.URL, "signature=abc")
}

func TestConcurrentUploadsProduceDistinctRows(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(newLocalHandler(t, store))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte('a' + n)}, 512+n)
			w := uploadRecording(t, r, "video", fmt.Sprintf("par%d.mp4", n), payload)
			assert.Equal(t, http.StatusCreated, w.Code)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.recs, 4)
	seen := make(map[int64]bool)
	for _, rec := range store.recs {
		assert.False(t, seen[rec.ID], "duplicate id %d", rec.ID)
		seen[rec.ID] = true

		stored, err := os.ReadFile(rec.Location)
		require.NoError(t, err)
		assert.Equal(t, rec.Filesize, int64(len(stored)))
		for _, b := range stored {
			assert.Equal(t, stored[0], b, "payload corrupted in %s", rec.Filename)
		}
	}
}
