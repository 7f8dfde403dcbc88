package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "labdesk", cfg.MongoDB)
	assert.Contains(t, cfg.ApprovalDesignations, "Director")
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("httpAddr: \":9090\"\nmongoDb: filedb\napprovalDesignations:\n  - Registrar\n"), 0o644))
	t.Setenv("LABDESK_CONFIG", path)
	t.Setenv("LABDESK_MONGO_DB", "envdb")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	// Env wins over the file.
	assert.Equal(t, "envdb", cfg.MongoDB)
	assert.Equal(t, []string{"Registrar"}, cfg.ApprovalDesignations)
}

func TestApprovalDesignationsFromEnv(t *testing.T) {
	t.Setenv("LABDESK_APPROVAL_DESIGNATIONS", "Director, Lab Head , ")
	cfg := Load()
	assert.Equal(t, []string{"Director", "Lab Head"}, cfg.ApprovalDesignations)
}
