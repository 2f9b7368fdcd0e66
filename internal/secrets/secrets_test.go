package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FromEnvironment(t *testing.T) {
	t.Setenv(EnvPrefix+"CODECOV_TOKEN", "tok-123")
	t.Setenv("UNRELATED_VAR", "ignored")

	store, err := Resolve("")
	require.NoError(t, err)

	v, ok := store.Get("CODECOV_TOKEN")
	require.True(t, ok)
	assert.Equal(t, "tok-123", v)

	_, ok = store.Get("UNRELATED_VAR")
	assert.False(t, ok)
}

func TestResolve_FileOverridesEnvironment(t *testing.T) {
	t.Setenv(EnvPrefix+"CODECOV_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "secrets.yml")
	content := "CODECOV_TOKEN: from-file\nDEPLOY_KEY: abc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := Resolve(path)
	require.NoError(t, err)

	v, ok := store.Get("CODECOV_TOKEN")
	require.True(t, ok)
	assert.Equal(t, "from-file", v)

	v, ok = store.Get("DEPLOY_KEY")
	require.True(t, ok)
	assert.Equal(t, "abc", v)
	assert.Equal(t, 2, store.Len())
}

func TestResolve_MalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secrets.yml")
	require.NoError(t, os.WriteFile(path, []byte("token: [not, a, string"), 0o600))

	_, err := Resolve(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse secrets file")
}

func TestResolve_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Resolve(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestAllReturnsCopy(t *testing.T) {
	t.Setenv(EnvPrefix+"A", "1")

	store, err := Resolve("")
	require.NoError(t, err)

	all := store.All()
	all["A"] = "mutated"

	v, _ := store.Get("A")
	assert.Equal(t, "1", v)
}
