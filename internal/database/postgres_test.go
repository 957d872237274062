package database

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usermgmt/console/internal/config"
)

func TestApplyPoolLimits(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.PostgresConfig
		wantMax      int32
		wantMin      int32
		wantLifetime time.Duration
	}{
		{"configured", config.PostgresConfig{MaxOpen: 10, MaxIdle: 2, ConnMaxLifetime: 30 * time.Minute}, 10, 2, 30 * time.Minute},
		{"idle capped at max", config.PostgresConfig{MaxOpen: 3, MaxIdle: 8}, 3, 3, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := pgxpool.ParseConfig("postgres://console@localhost:5432/console")
			require.NoError(t, err)

			applyPoolLimits(pc, tt.cfg)
			assert.Equal(t, tt.wantMax, pc.MaxConns)
			assert.Equal(t, tt.wantMin, pc.MinConns)
			assert.Equal(t, tt.wantLifetime, pc.MaxConnLifetime)
			assert.Equal(t, healthCheckPeriod, pc.HealthCheckPeriod)
		})
	}
}
