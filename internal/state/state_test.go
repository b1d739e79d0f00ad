package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "stratus.state.json"))
}

func TestRead_MissingFileIsFreshSnapshot(t *testing.T) {
	store := tempStore(t)
	snap, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Serial)
	assert.NotEmpty(t, snap.Lineage)
	assert.Empty(t, snap.Resources)
}

func TestWriteRead_Roundtrip(t *testing.T) {
	store := tempStore(t)

	snap := NewSnapshot()
	snap.Serial = 3
	snap.Resources["storage_bucket.site"] = &Record{
		Kind: "storage_bucket",
		Attributes: ctyjson.SimpleJSONValue{Value: cty.ObjectVal(map[string]cty.Value{
			"name": cty.StringVal("my-site"),
			"arn":  cty.StringVal("arn:aws:s3:::my-site"),
		})},
		Dependencies: []string{},
	}
	snap.Resources["bucket_policy.public_read"] = &Record{
		Kind: "bucket_policy",
		Attributes: ctyjson.SimpleJSONValue{Value: cty.ObjectVal(map[string]cty.Value{
			"bucket": cty.StringVal("my-site"),
		})},
		Dependencies: []string{"storage_bucket.site"},
	}
	require.NoError(t, store.Write(snap))

	loaded, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), loaded.Serial)
	assert.Equal(t, snap.Lineage, loaded.Lineage)
	require.Len(t, loaded.Resources, 2)

	rec := loaded.Resources["storage_bucket.site"]
	require.NotNil(t, rec)
	assert.Equal(t, "storage_bucket", rec.Kind)
	assert.Equal(t, cty.StringVal("my-site"), rec.Attributes.Value.GetAttr("name"))

	policy := loaded.Resources["bucket_policy.public_read"]
	require.NotNil(t, policy)
	assert.Equal(t, []string{"storage_bucket.site"}, policy.Dependencies)
}

func TestRead_CorruptSnapshot(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	_, err := store.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestWrite_LeavesNoTempFilesBehind(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Write(NewSnapshot()))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(store.Path()), entries[0].Name())
}

func TestLock_Exclusive(t *testing.T) {
	store := tempStore(t)

	release, err := store.Lock()
	require.NoError(t, err)

	_, err = store.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")

	require.NoError(t, release())

	// Lockable again after release.
	release, err = store.Lock()
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestNewSnapshot_FreshLineage(t *testing.T) {
	a := NewSnapshot()
	b := NewSnapshot()
	assert.NotEqual(t, a.Lineage, b.Lineage)
}
