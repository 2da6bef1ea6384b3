package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "studio.log")

	require.NoError(t, Init(Config{Level: "debug", OutputPaths: []string{out}}))
	t.Cleanup(func() { _ = Sync() })

	Named("agentclient").Info("agent call finished", "agent_id", "a-1")
	require.NoError(t, Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	line := string(data)
	require.Contains(t, line, `"msg":"agent call finished"`)
	require.Contains(t, line, `"component":"agentclient"`)
	require.Contains(t, line, `"agent_id":"a-1"`)
}

func TestSyncFallsBackToStdout(t *testing.T) {
	out := filepath.Join(t.TempDir(), "studio.log")
	require.NoError(t, Init(Config{OutputPaths: []string{out}}))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = orig })

	require.NoError(t, Sync())
	L().Info("after sync")
	Audit().Info("audit after sync")

	os.Stdout = orig
	require.NoError(t, w.Close())
	printed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(printed), `"msg":"after sync"`)
	require.Contains(t, string(printed), `"msg":"audit after sync"`)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NotContains(t, string(data), "after sync")
}

func TestAuditRequiresPath(t *testing.T) {
	err := Init(Config{Audit: AuditConfig{Enabled: true}})
	require.Error(t, err)
}

func TestAuditWritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit", "audit.log")

	require.NoError(t, Init(Config{Format: "text", OutputPaths: []string{"stderr"}, Audit: AuditConfig{Enabled: true, Path: path}}))
	Audit().Info("job submitted", "job_id", "j-1")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"job_id":"j-1"`), "audit line missing: %s", data)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "WARN", parseLevel("warning").String())
	require.Equal(t, "INFO", parseLevel("bogus").String())
	require.Equal(t, "ERROR", parseLevel("ERROR").String())
}
