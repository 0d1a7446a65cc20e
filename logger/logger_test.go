package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInitWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	closer, err := Init(Output{Dir: dir}, "debug")
	require.NoError(t, err)
	t.Cleanup(func() { Set(nil) })

	L().WithField("layer", "osm").Debug("tile requested")
	require.NoError(t, closer.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "tile requested")
	require.Contains(t, string(data), "DEBUG")
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	_, err := Init(Output{}, "chatty")
	require.NoError(t, err)
	t.Cleanup(func() { Set(nil) })
	require.Equal(t, logrus.InfoLevel, L().GetLevel())
}

func TestSetNilRestoresDefault(t *testing.T) {
	custom := logrus.New()
	Set(custom)
	require.Same(t, custom, L())
	Set(nil)
	require.NotSame(t, custom, L())
	require.Equal(t, logrus.WarnLevel, L().GetLevel())
}
