package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.HttpServer.Port)
	assert.Equal(t, 15*time.Second, cfg.HttpServer.TimeoutRead)
	assert.Equal(t, "attribute_service", cfg.Metrics.Prefix)
	assert.True(t, cfg.Events.Enabled)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestPostgresConfig_DSN(t *testing.T) {
	pc := PostgresConfig{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "attrs", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=attrs sslmode=require", pc.DSN())
}
