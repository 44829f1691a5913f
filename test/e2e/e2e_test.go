//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var articles = map[string]string{
	"apple_q1.txt":  "Apple reported record iPhone sales and strong services growth.",
	"apple_q2.txt":  "Apple faces supply chain headwinds but expects margins to hold.",
	"msft_q1.txt":   "Microsoft Azure revenue grew faster than expected.",
	"nvidia_q1.txt": "Nvidia data center demand continues to outstrip supply.",
}

func TestE2E_FetchBuildServe(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.UploadArchive(articles)

	t.Run("fetch extracts the archive from S3", func(t *testing.T) {
		output, err := env.RunDaemon("fetch")
		require.NoError(t, err, "fetch failed: %s", output)
		assert.Contains(t, output, "extracted 4 files")

		data, err := os.ReadFile(filepath.Join(env.WorkDir, "articles", "msft_q1.txt"))
		require.NoError(t, err)
		assert.Equal(t, articles["msft_q1.txt"], string(data))

		entries, err := os.ReadDir(env.WorkDir)
		require.NoError(t, err)
		for _, entry := range entries {
			assert.False(t, strings.HasSuffix(entry.Name(), ".zip"), "archive left behind: %s", entry.Name())
		}
	})

	t.Run("fetch skips a populated directory", func(t *testing.T) {
		output, err := env.RunDaemon("fetch")
		require.NoError(t, err, "fetch failed: %s", output)
		assert.Contains(t, output, "already holds articles")
	})

	t.Run("index build migrates and persists to postgres", func(t *testing.T) {
		output, err := env.RunDaemon("index", "build")
		require.NoError(t, err, "build failed: %s", output)
		assert.Contains(t, output, "4 entries")
		assert.Equal(t, int32(4), env.EmbedCalls.Load())

		output, err = env.RunDaemon("index", "build")
		require.NoError(t, err, "build failed: %s", output)
		assert.Contains(t, output, "already exists")
		assert.Equal(t, int32(4), env.EmbedCalls.Load())
	})

	t.Run("index status reads the postgres index", func(t *testing.T) {
		output, err := env.RunDaemon("index", "status")
		require.NoError(t, err, "status failed: %s", output)
		assert.Contains(t, output, "Entries: 4")
		assert.Contains(t, output, "Dimensions: 4")
		assert.Contains(t, output, "Provider: ollama/all-minilm")
	})

	env.StartDaemon()

	t.Run("serve loads the index without re-embedding", func(t *testing.T) {
		assert.Equal(t, int32(4), env.EmbedCalls.Load())

		output, err := env.RunClient(apiToken, "status", "--output")
		require.NoError(t, err, "status failed: %s", output)

		var status struct {
			Loaded  bool `json:"loaded"`
			Entries int  `json:"entries"`
		}
		require.NoError(t, json.Unmarshal([]byte(output), &status))
		assert.True(t, status.Loaded)
		assert.Equal(t, 4, status.Entries)
	})

	t.Run("ask returns a grounded answer with ranked sources", func(t *testing.T) {
		output, err := env.RunClient(apiToken, "ask", "--output", "-k", "2", "How is Apple doing?")
		require.NoError(t, err, "ask failed: %s", output)

		var answer struct {
			Answer  string `json:"answer"`
			Sources []struct {
				Source string `json:"source"`
			} `json:"sources"`
		}
		require.NoError(t, json.Unmarshal([]byte(output), &answer))
		assert.Equal(t, "Answer grounded on the articles.", answer.Answer)
		require.Len(t, answer.Sources, 2)
		for _, src := range answer.Sources {
			assert.True(t, strings.HasPrefix(src.Source, "apple_"), src.Source)
		}
	})

	t.Run("reports", func(t *testing.T) {
		output, err := env.RunClient(apiToken, "outlook", "nvda")
		require.NoError(t, err, "outlook failed: %s", output)
		assert.Contains(t, output, "Answer grounded on the articles.")

		output, err = env.RunClient(apiToken, "compete", "MSFT", "AAPL")
		require.NoError(t, err, "compete failed: %s", output)
		assert.Contains(t, output, "Sources:")

		output, err = env.RunClient(apiToken, "outlook", "not a symbol!")
		require.Error(t, err)
		assert.Contains(t, output, "400")
	})

	t.Run("requests without the token are rejected", func(t *testing.T) {
		output, err := env.RunClient("", "status")
		require.Error(t, err)
		assert.Contains(t, output, "401")

		resp, err := http.Get(env.ServerURL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestE2E_WatchRebuildsOnChange(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.UploadArchive(articles)

	output, err := env.RunDaemon("fetch")
	require.NoError(t, err, "fetch failed: %s", output)

	env.StartDaemon("--watch")
	require.Equal(t, int32(4), env.EmbedCalls.Load())

	err = os.WriteFile(filepath.Join(env.WorkDir, "articles", "amd_q1.txt"), []byte("AMD gained share in servers."), 0o644)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		output, err := env.RunClient(apiToken, "status", "--output")
		return err == nil && strings.Contains(output, `"entries":5`)
	}, 60*time.Second, 500*time.Millisecond)
}
