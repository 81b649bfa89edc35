package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/vectorstore/local"
)

// Under go test stdin is /dev/null, so the interactive loop exits
// immediately after ingestion and run returns.
func setupFirstRunEnv(t *testing.T, ingestMode string) (storeDir string) {
	t.Helper()
	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "notes.txt"),
		[]byte("Lists are ordered collections. Lists can grow as values are appended."), 0o644))
	storeDir = filepath.Join(t.TempDir(), "store")

	t.Setenv("DOCCHAT_DOCS_DIR", docsDir)
	t.Setenv("DOCCHAT_STORE_DIR", storeDir)
	t.Setenv("DOCCHAT_EMBEDDER", "tfidf")
	t.Setenv("DOCCHAT_INGEST_MODE", ingestMode)
	t.Setenv("OPENAI_API_KEY", "sk-test-1234567890")
	t.Setenv("LOG_LEVEL", "error")
	return storeDir
}

func TestRun_FirstRunInAppendModeCreatesStore(t *testing.T) {
	storeDir := setupFirstRunEnv(t, "append")

	require.NoError(t, run("", false, false))
	assert.True(t, local.Exists(storeDir), "first run must leave a persisted snapshot behind")
}

func TestRun_FirstRunInReplaceModeCreatesStore(t *testing.T) {
	storeDir := setupFirstRunEnv(t, "replace")

	require.NoError(t, run("", false, false))
	assert.True(t, local.Exists(storeDir))
}
