package sqlitestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/resultstore"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".bootforge", "registry.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	return s, path
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	built := time.Unix(1700000000, 42)
	require.NoError(t, s.Put(ctx, &resultstore.Entry{
		Target:          "manifests/a.yaml",
		Fingerprint:     "sha256:aa",
		DepFingerprints: map[string]string{"manifests/a.jsonnet": "sha256:bb"},
		BuiltAt:         built,
	}))
	require.NoError(t, s.Put(ctx, &resultstore.Entry{
		Target:     "deps_of:manifests/a.yaml",
		Discovered: []string{"manifests/a.jsonnet", "manifests/lib.libsonnet"},
		BuiltAt:    built,
	}))
	require.NoError(t, s.Close())

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(ctx, "manifests/a.yaml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sha256:aa", got.Fingerprint)
	assert.Equal(t, map[string]string{"manifests/a.jsonnet": "sha256:bb"}, got.DepFingerprints)
	assert.Nil(t, got.Discovered)
	assert.True(t, built.Equal(got.BuiltAt))

	disc, ok, err := s.Get(ctx, "deps_of:manifests/a.yaml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"manifests/a.jsonnet", "manifests/lib.libsonnet"}, disc.Discovered)
	assert.Empty(t, disc.DepFingerprints)
}

func TestStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Put(ctx, &resultstore.Entry{Target: "a", Fingerprint: "1", BuiltAt: time.Now()}))
	require.NoError(t, s.Put(ctx, &resultstore.Entry{Target: "a", Fingerprint: "2", Discovered: []string{}, BuiltAt: time.Now()}))

	got, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Fingerprint)
	assert.NotNil(t, got.Discovered, "an empty discovered list is distinct from none")

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptRow(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (target, fingerprint, dep_fingerprints, discovered, built_at) VALUES ('deps_of:x', '', '{}', 'not json', 0)`)
	require.NoError(t, err)

	_, _, err = s.Get(ctx, "deps_of:x")
	require.ErrorIs(t, err, resultstore.ErrRegistryCorrupt)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("garbage!", 512)), 0o644))

	_, err := Open(context.Background(), path)
	require.ErrorIs(t, err, resultstore.ErrRegistryCorrupt)
}
