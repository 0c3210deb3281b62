package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, uint(1))
}

func TestMigrationsChecksumIsStable(t *testing.T) {
	first, err := MigrationsChecksum()
	require.NoError(t, err)
	second, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestParseMigrationVersion(t *testing.T) {
	v, ok := parseMigrationVersion("0001_init.up.sql")
	assert.True(t, ok)
	assert.Equal(t, uint(1), v)

	_, ok = parseMigrationVersion("init.up.sql")
	assert.False(t, ok)
}
