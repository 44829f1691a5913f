//go:build e2e

package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/cloo-solutions/newsrag/internal/storage"
	"github.com/cloo-solutions/newsrag/internal/testutil"
)

const (
	archiveBucket = "newsrag-archives"
	archiveKey    = "articles.zip"
	apiToken      = "e2e-secret-token"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	S3Client  *storage.S3Client
	Providers *httptest.Server
	BinaryDir string
	WorkDir   string
	ServerURL string

	EmbedCalls atomic.Int32
	ChatCalls  atomic.Int32

	daemon *exec.Cmd
}

// SetupE2EEnv starts Postgres and RustFS, fakes the model providers and builds both binaries
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	env := &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: testutil.NewPostgresContainer(ctx, t),
		RustFSC:   testutil.NewRustFSContainer(ctx, t),
		WorkDir:   t.TempDir(),
	}
	env.S3Client = env.RustFSC.NewS3Client(ctx, t, archiveBucket)
	env.Providers = httptest.NewServer(env.providerHandler())
	env.BuildBinaries()

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	e.StopDaemon()
	if e.Providers != nil {
		e.Providers.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// providerHandler serves the Ollama embed API and an OpenAI-compatible chat API.
// Vectors have one axis per company so retrieval is predictable.
func (e *E2ETestEnv) providerHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		e.EmbedCalls.Add(1)
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := strings.ToLower(req.Input)
		vector := []float32{0.1, 0.1, 0.1, 0.1}
		for i, word := range []string{"apple", "microsoft", "nvidia"} {
			if strings.Contains(text, word) {
				vector[i] = 1
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{vector}})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		e.ChatCalls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		answer := "No context."
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "Context:") {
			answer = "Answer grounded on the articles."
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-e2e",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
		})
	})
	return mux
}

// UploadArchive zips articles under an articles/ root and stores them in RustFS.
func (e *E2ETestEnv) UploadArchive(articles map[string]string) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range articles {
		w, err := zw.Create("articles/" + name)
		if err != nil {
			e.T.Fatalf("failed to add %s to archive: %v", name, err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		e.T.Fatalf("failed to close archive: %v", err)
	}

	if err := e.S3Client.PutObject(e.Ctx, archiveBucket, archiveKey, bytes.NewReader(buf.Bytes()), "application/zip"); err != nil {
		e.T.Fatalf("failed to upload archive: %v", err)
	}
}

func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "newsrag-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"newsragd", "newsrag"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// daemonEnv configures newsragd for the containers and fake providers.
func (e *E2ETestEnv) daemonEnv() []string {
	return append(os.Environ(),
		"NEWSRAG_OPENROUTER_API_KEY=e2e-key",
		"NEWSRAG_LLM_BASE_URL="+e.Providers.URL,
		"NEWSRAG_EMBEDDING_PROVIDER=ollama",
		"NEWSRAG_EMBEDDING_BASE_URL="+e.Providers.URL,
		"NEWSRAG_INDEX_BACKEND=postgres",
		"NEWSRAG_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"NEWSRAG_SOURCE_DIR="+filepath.Join(e.WorkDir, "articles"),
		"NEWSRAG_PERSIST_DIR=news",
		"NEWSRAG_ARCHIVE_URL=s3://"+archiveBucket+"/"+archiveKey,
		"NEWSRAG_S3_ENDPOINT="+e.RustFSC.Endpoint(),
		"NEWSRAG_S3_ACCESS_KEY_ID=rustfsadmin",
		"NEWSRAG_S3_SECRET_ACCESS_KEY=rustfsadmin",
		"NEWSRAG_API_TOKEN="+apiToken,
		"NEWSRAG_SENTRY_DSN=",
	)
}

// RunDaemon runs a one-shot newsragd command.
func (e *E2ETestEnv) RunDaemon(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "newsragd"), args...)
	cmd.Dir = e.WorkDir
	cmd.Env = e.daemonEnv()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// StartDaemon runs newsragd serve in the background and waits for /health.
func (e *E2ETestEnv) StartDaemon(extraArgs ...string) {
	port, err := getFreePort()
	if err != nil {
		e.T.Fatalf("failed to get free port: %v", err)
	}

	args := append([]string{"serve", "-p", fmt.Sprint(port)}, extraArgs...)
	cmd := exec.Command(filepath.Join(e.BinaryDir, "newsragd"), args...)
	cmd.Dir = e.WorkDir
	cmd.Env = e.daemonEnv()
	var logs bytes.Buffer
	cmd.Stdout = &logs
	cmd.Stderr = &logs
	if err := cmd.Start(); err != nil {
		e.T.Fatalf("failed to start newsragd: %v", err)
	}
	e.daemon = cmd

	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	if !waitForServer(e.ServerURL, 60*time.Second) {
		e.StopDaemon()
		e.T.Fatalf("newsragd did not start:\n%s", logs.String())
	}
}

// StopDaemon sends SIGINT and waits for a graceful exit.
func (e *E2ETestEnv) StopDaemon() {
	if e.daemon == nil || e.daemon.Process == nil {
		return
	}
	e.daemon.Process.Signal(syscall.SIGINT)
	done := make(chan error, 1)
	go func() { done <- e.daemon.Wait() }()
	select {
	case <-done:
	case <-time.After(35 * time.Second):
		e.daemon.Process.Kill()
	}
	e.daemon = nil
}

// RunClient runs newsrag against the started daemon.
func (e *E2ETestEnv) RunClient(token string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "newsrag"), args...)
	cmd.Dir = e.WorkDir
	cmd.Env = append(os.Environ(),
		"NEWSRAG_API_KEY="+token,
		"NEWSRAG_API_URL="+e.ServerURL,
		"HOME="+e.WorkDir,
		"XDG_CONFIG_HOME="+filepath.Join(e.WorkDir, ".config"),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func waitForServer(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
