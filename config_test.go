package arbor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 7, config.Coordinator.CouncilSize)
	assert.Equal(t, 30*time.Second, config.Coordinator.EvaluatorTimeout())
	assert.Equal(t, 2*time.Minute, config.Coordinator.CollectTimeout())
	assert.Equal(t, BackendMemory, config.EventLog.Backend)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
	}{
		{"zero council", func(c *Config) { c.Coordinator.CouncilSize = 0 }},
		{"zero evaluator timeout", func(c *Config) { c.Coordinator.EvaluatorTimeoutMs = 0 }},
		{"zero collect timeout", func(c *Config) { c.Coordinator.CollectTimeoutMs = 0 }},
		{"zero mailbox", func(c *Config) { c.Coordinator.MailboxSize = 0 }},
		{"reserved beyond mailbox", func(c *Config) { c.Coordinator.ReservedHighPriority = c.Coordinator.MailboxSize + 1 }},
		{"unknown backend", func(c *Config) { c.EventLog.Backend = "etcd" }},
		{"fs backend without location", func(c *Config) { c.EventLog.Backend = BackendFs }},
		{"sqlite backend without location", func(c *Config) { c.EventLog.Backend = BackendSqlite }},
	}
	for _, testCase := range testCases {
		config := DefaultConfig()
		testCase.mutate(config)
		assert.Error(t, config.Validate(), testCase.description)
	}

	// an unset backend selects the memory store, same as newEventLog
	config := DefaultConfig()
	config.EventLog.Backend = ""
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	content := `
coordinator:
  councilSize: 5
  mailboxSize: 16
eventLog:
  backend: sqlite
  location: /tmp/arbor-events.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, config.Coordinator.CouncilSize)
	assert.Equal(t, 16, config.Coordinator.MailboxSize)
	// unset fields keep their defaults
	assert.Equal(t, 30_000, config.Coordinator.EvaluatorTimeoutMs)
	assert.Equal(t, BackendSqlite, config.EventLog.Backend)
	assert.Equal(t, "/tmp/arbor-events.db", config.EventLog.Location)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coordinator:\n  councilSize: -1\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
