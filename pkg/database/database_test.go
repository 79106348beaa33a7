package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_UsesRootDir(t *testing.T) {
	prev := gooseUp
	t.Cleanup(func() { gooseUp = prev })

	var gotDir string
	gooseUp = func(ctx context.Context, pool *pgxpool.Pool, dir string) error {
		gotDir = dir
		return nil
	}

	fsys := fstest.MapFS{"00001_init.sql": {Data: []byte("-- +goose Up\n")}}
	require.NoError(t, Migrate(context.Background(), nil, fsys))
	assert.Equal(t, ".", gotDir)
}

func TestMigrate_WrapsError(t *testing.T) {
	prev := gooseUp
	t.Cleanup(func() { gooseUp = prev })

	boom := errors.New("boom")
	gooseUp = func(ctx context.Context, pool *pgxpool.Pool, dir string) error { return boom }

	err := Migrate(context.Background(), nil, fstest.MapFS{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
