package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.Config
		wantErr error
	}{
		{name: "memory", cfg: types.Config{Backend: types.BackendMemory}},
		{name: "sqlite", cfg: types.Config{Backend: types.BackendSQLite}},
		{name: "empty backend", cfg: types.Config{}, wantErr: types.ErrBackendEmpty},
		{name: "unknown backend", cfg: types.Config{Backend: "postgres"}, wantErr: types.ErrBackendUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.Backend == types.BackendSQLite {
				tt.cfg.DataDir = t.TempDir()
			}
			h, err := Open(tt.cfg, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer h.Close()

			hash, err := h.Commit("Name", types.StringEntry("alice"))
			require.NoError(t, err)
			got, err := h.Get(hash)
			require.NoError(t, err)
			assert.Equal(t, types.StringEntry("alice"), got)
			assert.NotEmpty(t, h.Source())
		})
	}
}

func TestOpenSameAgentSameSource(t *testing.T) {
	mem, err := Open(types.Config{Backend: types.BackendMemory, Agent: "ann"}, nil)
	require.NoError(t, err)
	lite, err := Open(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), Agent: "ann"}, nil)
	require.NoError(t, err)
	defer lite.Close()

	assert.Equal(t, mem.Source(), lite.Source())
}
