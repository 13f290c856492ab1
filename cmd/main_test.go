package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"file-qa/internal/chromemdb"
	"file-qa/internal/config"
	"file-qa/internal/db"
	"file-qa/internal/models"
	"file-qa/internal/qdrantdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goodKey    = "gsk_good"
	chatAnswer = "The keeper is Orsolya Brandt."
	promptYAML = `file_q&a_chatbot_system_prompt:
  role: Helpful assistant answering questions about a document
  instruction: Answer the question using only the content provided.
  output_constraints:
    - Say you do not know when the content does not contain the answer
`
)

// fakeOllama embeds text on two axes: mentions of "lighthouse" and everything else
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vector := []float32{1, 0}
		if strings.Contains(strings.ToLower(req.Prompt), "lighthouse") {
			vector = []float32{0, 1}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vector})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeChat(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+goodKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
			return
		}
		switch r.URL.Path {
		case "/models":
			_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
		case "/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": chatAnswer}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	dir        string
	configPath string
	storePath  string
	document   string
}

func newTestEnv(t *testing.T, key string) *testEnv {
	t.Helper()
	t.Setenv(config.EnvGroqAPIKey, "")
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		storePath:  filepath.Join(dir, "vector_db"),
		document:   filepath.Join(dir, "harbor.txt"),
	}
	promptPath := filepath.Join(dir, "prompt_config.yaml")
	require.NoError(t, os.WriteFile(promptPath, []byte(promptYAML), 0o644))

	cfg := fmt.Sprintf(`llm:
  base_url: %s
  key: %q
embed_llm:
  provider: ollama
  base_url: %s
  model: all-minilm
rag:
  prompt_config_path: %s
vector_store:
  type: chromem
  chromem:
    path: %s
`, fakeChat(t).URL, key, fakeOllama(t).URL, promptPath, env.storePath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))

	doc := "The harbor town wakes early.\n\nThe lighthouse keeper is named Orsolya Brandt.\n\nFishing boats leave at dawn."
	require.NoError(t, os.WriteFile(env.document, []byte(doc), 0o644))
	return env
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "fileqa", cmd.Use)

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, configFilePath, flag.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("debug"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"ingest", "ask", "chat", "check-key"}, names)
}

func TestNewStore(t *testing.T) {
	store, err := newStore(&config.VectorStoreConfig{
		Type:    config.StoreChromem,
		Chromem: config.ChromemConfig{Path: filepath.Join(t.TempDir(), "db"), Collection: "documents"},
	})
	require.NoError(t, err)
	assert.IsType(t, &chromemdb.VectorDBManager{}, store)

	store, err = newStore(&config.VectorStoreConfig{
		Type:     config.StorePGVector,
		PGVector: config.PGVectorConfig{DSN: "postgres://user@127.0.0.1:1/none?sslmode=disable", Driver: config.DriverPG},
	})
	require.NoError(t, err)
	assert.IsType(t, &db.Store{}, store)
	closeStore(store)

	store, err = newStore(&config.VectorStoreConfig{
		Type:   config.StoreQdrant,
		Qdrant: config.QdrantConfig{Host: "127.0.0.1", Port: 1, Collection: "documents"},
	})
	require.NoError(t, err)
	assert.IsType(t, &qdrantdb.Store{}, store)
	closeStore(store)

	_, err = newStore(&config.VectorStoreConfig{Type: "faiss"})
	assert.Error(t, err)
}

func TestIngestDryRun(t *testing.T) {
	env := newTestEnv(t, goodKey)

	out, err := env.run(t, "", "ingest", "--file", env.document, "--dry-run")
	require.NoError(t, err)

	var chunks []models.Chunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Orsolya Brandt")

	_, err = os.Stat(env.storePath)
	assert.True(t, os.IsNotExist(err), "dry run must not create the store")
}

func TestIngestRejectsUnsupportedFile(t *testing.T) {
	env := newTestEnv(t, goodKey)
	sheet := filepath.Join(env.dir, "sheet.xlsx")
	require.NoError(t, os.WriteFile(sheet, []byte("a,b"), 0o644))

	_, err := env.run(t, "", "ingest", "--file", sheet)
	assert.ErrorIs(t, err, models.ErrUnsupportedFileType)

	_, err = env.run(t, "", "ingest")
	assert.Error(t, err)
}

func TestIngestAndAsk(t *testing.T) {
	env := newTestEnv(t, goodKey)
	snapshot := filepath.Join(env.dir, "documents.chromem")

	out, err := env.run(t, "", "ingest", "--file", env.document, "--export", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 1 chunks")
	assert.FileExists(t, snapshot)

	out, err = env.run(t, "", "ask", "--query", "Who keeps the lighthouse?", "--no-answer")
	require.NoError(t, err)
	assert.Contains(t, out, "[doc_0]")
	assert.Contains(t, out, models.ContentBeginMarker)
	assert.Contains(t, out, "Orsolya Brandt")
	assert.NotContains(t, out, chatAnswer)

	out, err = env.run(t, "", "ask", "Who keeps the lighthouse?")
	require.NoError(t, err)
	assert.Contains(t, out, chatAnswer)
	assert.NotContains(t, out, models.ContentBeginMarker)

	out, err = env.run(t, "", "ingest", "--import", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 chunks")
}

func TestAskBeforeIngest(t *testing.T) {
	env := newTestEnv(t, goodKey)

	out, err := env.run(t, "", "ask", "--query", "Who keeps the lighthouse?")
	assert.ErrorIs(t, err, models.ErrNoDocument)
	assert.NotContains(t, out, chatAnswer)

	_, err = env.run(t, "", "ask", "--query", "Who keeps the lighthouse?", "--no-answer")
	assert.ErrorIs(t, err, models.ErrNoDocument)
}

func TestAskBelowThresholdStillAnswers(t *testing.T) {
	env := newTestEnv(t, goodKey)
	_, err := env.run(t, "", "ingest", "--file", env.document)
	require.NoError(t, err)

	// the only chunk sits on the lighthouse axis, orthogonal to this question
	out, err := env.run(t, "", "ask", "--query", "What time do boats leave?", "--show-prompt")
	require.NoError(t, err)
	assert.Contains(t, out, "[]")
	assert.Contains(t, out, models.ContentBeginMarker+"\n\n"+models.ContentEndMarker)
	assert.Contains(t, out, chatAnswer)
}

func TestCheckKey(t *testing.T) {
	out, err := newTestEnv(t, goodKey).run(t, "", "check-key")
	require.NoError(t, err)
	assert.Contains(t, out, "API key is valid")

	_, err = newTestEnv(t, "gsk_bad").run(t, "", "check-key")
	assert.ErrorIs(t, err, models.ErrInvalidCredential)

	_, err = newTestEnv(t, "").run(t, "", "check-key")
	assert.ErrorIs(t, err, models.ErrNoCredential)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, "gsk_bad")
	second := filepath.Join(env.dir, "notes.md")
	require.NoError(t, os.WriteFile(second, []byte("# Notes\n\nThe lighthouse was built in 1902."), 0o644))

	stdin := strings.Join([]string{
		goodKey,
		"Who keeps the lighthouse?",
		"/file " + env.document,
		"/file " + second,
		"",
		"When was the lighthouse built?",
		"exit",
	}, "\n")
	out, err := env.run(t, stdin, "chat", "--file", env.document)
	require.NoError(t, err)

	assert.Contains(t, out, "The API key was rejected")
	assert.Contains(t, out, "Loaded harbor.txt (1 chunks)")
	assert.Contains(t, out, "harbor.txt is already loaded")
	assert.Contains(t, out, "Loaded notes.md (1 chunks)")
	assert.Equal(t, 2, strings.Count(out, chatAnswer))
	assert.Contains(t, out, "Sources: doc_0")
}

func TestChatWithoutDocument(t *testing.T) {
	env := newTestEnv(t, goodKey)

	out, err := env.run(t, "anything?\nquit\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Upload a document first")
}

func TestChatWithoutKey(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "", "chat")
	assert.ErrorIs(t, err, models.ErrNoCredential)
}
