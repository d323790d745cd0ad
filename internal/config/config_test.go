package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:9200", cfg.ESAddresses)
	assert.Equal(t, "users", cfg.IndexName)
	assert.Equal(t, "user", cfg.EntityName)
	assert.False(t, cfg.ForceRecreate)
	assert.Equal(t, 60, cfg.TokenTTLMinutes)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("INDEX_NAME", "accounts")
	t.Setenv("ENTITY_NAME", "account")
	t.Setenv("FORCE_RECREATE", "true")
	t.Setenv("ES_ADDRESSES", "http://es1:9200,http://es2:9200")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "accounts", cfg.IndexName)
	assert.Equal(t, "account", cfg.EntityName)
	assert.True(t, cfg.ForceRecreate)
	assert.Equal(t, "http://es1:9200,http://es2:9200", cfg.ESAddresses)
}
