package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"secondbrain/pkg/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DBConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "brain",
		Password: "p@ss:w/rd",
		Name:     "secondbrain",
		MaxConns: 4,
		MinConns: 9,
	}

	pc, err := poolConfig(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "p@ss:w/rd", pc.ConnConfig.Password)
	assert.Equal(t, int32(4), pc.MaxConns)
	// MinConns 超过 MaxConns 时回落默认值
	assert.Equal(t, int32(defaultMinConns), pc.MinConns)
	assert.IsType(t, &SlowQueryTracer{}, pc.ConnConfig.Tracer)
}
