package models

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// fakeHub serves a minimal hub API for one repository with the weights
// under onnx/.
func fakeHub(t *testing.T, repoID string) *httptest.Server {
	t.Helper()

	files := map[string]string{
		"onnx/" + FileWeights: "onnx-bytes",
		FileConfig:            `{"id2label":{"0":"Valid"}}`,
		FileVocab:             "[PAD]\n[UNK]\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/"+repoID, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HubModelInfo{
			ID:       repoID,
			SHA:      "rev-1",
			Tags:     []string{"onnx"},
			Siblings: []HubFile{{RFilename: FileConfig}, {RFilename: FileVocab}, {RFilename: "onnx/" + FileWeights}},
		})
	})
	mux.HandleFunc("/api/models/"+repoID+"/tree/main/onnx", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]HubTreeEntry{
			{Type: "file", Path: "onnx/" + FileWeights, Size: int64(len(files["onnx/"+FileWeights]))},
		})
	})
	mux.HandleFunc("/api/models/"+repoID+"/tree/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]HubTreeEntry{
			{Type: "file", Path: FileConfig, Size: int64(len(files[FileConfig]))},
			{Type: "file", Path: FileVocab, Size: int64(len(files[FileVocab]))},
			{Type: "directory", Path: "onnx"},
		})
	})
	mux.HandleFunc("/"+repoID+"/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[len("/"+repoID+"/resolve/main/"):]
		content, ok := files[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHubClient_GetModelInfo(t *testing.T) {
	srv := fakeHub(t, "org/model")
	client := NewHubClient(HubConfig{Endpoint: srv.URL})

	info, err := client.GetModelInfo(context.Background(), "org/model")
	if err != nil {
		t.Fatalf("GetModelInfo() error = %v", err)
	}
	if info.SHA != "rev-1" {
		t.Errorf("SHA = %q, want rev-1", info.SHA)
	}
	if !info.HasONNX() {
		t.Error("HasONNX() = false, want true")
	}
}

func TestHubClient_GetModelInfo_NotFound(t *testing.T) {
	srv := fakeHub(t, "org/model")
	client := NewHubClient(HubConfig{Endpoint: srv.URL})

	if _, err := client.GetModelInfo(context.Background(), "org/missing"); err == nil {
		t.Fatal("GetModelInfo() for missing repo succeeded, want error")
	}
}

func TestHubClient_FindWeightsFile(t *testing.T) {
	srv := fakeHub(t, "org/model")
	client := NewHubClient(HubConfig{Endpoint: srv.URL})

	path, size, err := client.FindWeightsFile(context.Background(), "org/model")
	if err != nil {
		t.Fatalf("FindWeightsFile() error = %v", err)
	}
	if path != "onnx/"+FileWeights {
		t.Errorf("path = %q, want onnx/%s", path, FileWeights)
	}
	if size != int64(len("onnx-bytes")) {
		t.Errorf("size = %d, want %d", size, len("onnx-bytes"))
	}
}

func TestHubClient_DownloadFile(t *testing.T) {
	srv := fakeHub(t, "org/model")
	client := NewHubClient(HubConfig{Endpoint: srv.URL})

	var buf bytes.Buffer
	var lastDownloaded int64
	n, err := client.DownloadFile(context.Background(), "org/model", FileConfig, &buf, func(downloaded, total int64) {
		lastDownloaded = downloaded
	})
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("returned %d bytes, wrote %d", n, buf.Len())
	}
	if lastDownloaded != n {
		t.Errorf("final progress = %d, want %d", lastDownloaded, n)
	}
	if !bytes.Contains(buf.Bytes(), []byte("id2label")) {
		t.Errorf("downloaded content = %q", buf.String())
	}
}

func TestHubClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(HubModelInfo{ID: "org/model", SHA: "rev-1"})
	}))
	defer srv.Close()

	client := NewHubClient(HubConfig{Endpoint: srv.URL})
	info, err := client.GetModelInfo(context.Background(), "org/model")
	if err != nil {
		t.Fatalf("GetModelInfo() error = %v", err)
	}
	if info.SHA != "rev-1" {
		t.Errorf("SHA = %q, want rev-1", info.SHA)
	}
	if calls.Load() != 3 {
		t.Errorf("handler called %d times, want 3", calls.Load())
	}
}

func TestHubClient_SendsAuthToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(HubModelInfo{ID: "org/model"})
	}))
	defer srv.Close()

	client := NewHubClient(HubConfig{Endpoint: srv.URL, Token: "hf_secret"})
	if _, err := client.GetModelInfo(context.Background(), "org/model"); err != nil {
		t.Fatalf("GetModelInfo() error = %v", err)
	}
	if gotAuth != "Bearer hf_secret" {
		t.Errorf("Authorization = %q, want Bearer hf_secret", gotAuth)
	}
}

func TestPuller_Pull(t *testing.T) {
	srv := fakeHub(t, "org/test-model")
	client := NewHubClient(HubConfig{Endpoint: srv.URL})
	store := NewStore(t.TempDir())
	puller := NewPuller(client, store, logger.New("error", "text"))

	var progressCalls int
	manifest, err := puller.Pull(context.Background(), "org/test-model", func(p PullProgress) {
		progressCalls++
		if p.FileCount != 3 {
			t.Errorf("FileCount = %d, want 3", p.FileCount)
		}
	})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}

	if manifest.Name != "test-model" {
		t.Errorf("manifest name = %q, want test-model", manifest.Name)
	}
	if manifest.Revision != "rev-1" {
		t.Errorf("manifest revision = %q, want rev-1", manifest.Revision)
	}
	if !manifest.Complete() {
		t.Error("manifest not complete after pull")
	}
	if progressCalls == 0 {
		t.Error("progress callback never invoked")
	}

	// Artifacts land under their base names, onnx/ flattened away.
	for _, name := range []string{FileWeights, FileConfig, FileVocab} {
		if _, err := os.Stat(filepath.Join(store.Dir("test-model"), name)); err != nil {
			t.Errorf("artifact %s missing after pull: %v", name, err)
		}
	}

	if !store.Exists("test-model") {
		t.Error("store does not report the pulled model")
	}
}
