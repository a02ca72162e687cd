package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chatdrop/internal/service/ingest"
)

func newUploadRouter(t *testing.T, maxBytes int64) (*chi.Mux, string) {
	t.Helper()
	dir := t.TempDir()
	sink := ingest.NewSink(dir, zerolog.Nop())
	handler := New(sink, maxBytes, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, dir
}

func TestRawBodyRoundTrip(t *testing.T) {
	r, dir := newUploadRouter(t, 1<<20)

	body := "raw body content"
	req := httptest.NewRequest(http.MethodPost, "/file/f.txt", strings.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var res ingest.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response err: %v", err)
	}
	if res.Name != "f.txt" || res.Size != int64(len(body)) {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	if err != nil {
		t.Fatalf("ReadFile err: %v", err)
	}
	if string(got) != body {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestRawBodyPutVerb(t *testing.T) {
	r, dir := newUploadRouter(t, 1<<20)

	req := httptest.NewRequest(http.MethodPut, "/file/put.txt", strings.NewReader("via put"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, "put.txt")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
}

func TestRawBodyRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	sink := ingest.NewSink(dir, zerolog.Nop())
	handler := New(sink, 1<<20, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/file/x", strings.NewReader("evil"))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("name", "../../etc/passwd")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	handler.handleRawBody(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written, found %d", len(entries))
	}
}

func TestRawBodyOverLimitRejected(t *testing.T) {
	r, dir := newUploadRouter(t, 8)

	req := httptest.NewRequest(http.MethodPost, "/file/big.txt", strings.NewReader("definitely more than eight bytes"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}

	// The truncated file stays behind, like any other aborted stream.
	if _, err := os.Stat(filepath.Join(dir, "big.txt")); err != nil {
		t.Fatalf("expected partial file to remain: %v", err)
	}
}

func TestFormPageServed(t *testing.T) {
	r, _ := newUploadRouter(t, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type: %s", ct)
	}
}

func TestMultipartStreamsEachFile(t *testing.T) {
	r, dir := newUploadRouter(t, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("files", "a.txt")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	_, _ = fw.Write([]byte("first file"))

	fw, err = mw.CreateFormFile("files", "b.txt")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	_, _ = fw.Write([]byte("second file"))

	// Plain fields without a file name are skipped, not stored.
	_ = mw.WriteField("note", "not a file")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", resp.Code, resp.Body.String())
	}
	if loc := resp.Header().Get("Location"); loc != "/upload" {
		t.Fatalf("unexpected redirect target: %s", loc)
	}

	for name, want := range map[string]string{"a.txt": "first file", "b.txt": "second file"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadFile %s err: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("content mismatch for %s: got %q", name, got)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected exactly two files, found %d", len(entries))
	}
}

func TestMultipartRejectsTraversalFilename(t *testing.T) {
	r, dir := newUploadRouter(t, 1<<20)

	// Part.FileName strips directories, so ".." is the traversal shape
	// that actually reaches the validator.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "..")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	_, _ = fw.Write([]byte("evil"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written, found %d", len(entries))
	}
}

func TestMultipartTraversalPathIsReducedToBaseName(t *testing.T) {
	r, dir := newUploadRouter(t, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "../../etc/passwd")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	_, _ = fw.Write([]byte("harmless"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	// mime/multipart reduces the filename to its base, so the upload lands
	// flat inside the storage root instead of escaping it.
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", resp.Code, resp.Body.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "passwd")); err != nil {
		t.Fatalf("expected base-named file inside root: %v", err)
	}
}

func TestMultipartRejectsNonMultipartBody(t *testing.T) {
	r, _ := newUploadRouter(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
