package scene

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
)

func batchTree(t *testing.T) string {
	dir := t.TempDir()
	touch(t, dir, "a.car", "")
	touch(t, dir, "b.car", "bad")
	touch(t, dir, filepath.Join("sub", "c.CAR"), "")
	touch(t, dir, "notes.txt", "bad")
	return dir
}

func TestProcessAllCountsAndContinues(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := batchTree(t)

	result, err := m.ProcessAll(context.Background(), dir, "*.car")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.True(t, asset.IsFormat(result.Errors[0]))

	assert.Empty(t, m.Models())
	assert.Empty(t, rec.changes)
	require.Len(t, rec.progress, 4)
	assert.Equal(t, "[1/0] a.car", rec.progress[0])
	assert.Equal(t, "[1/1] b.car", rec.progress[1])
	assert.Equal(t, "*.car processing complete. 2 success 1 fail", rec.progress[3])
}

func TestProcessAllCancel(t *testing.T) {
	imp := carImporter(".car")
	m, _ := newScene(t, imp)
	dir := batchTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	m.Subscribe(ObserverFuncs{Progress: func(string) { cancel() }})

	result, err := m.ProcessAll(ctx, dir, "*.car")
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, result.Success+result.Failed)
	assert.Equal(t, 1, imp.Calls())
}

func TestProcessAllBadInput(t *testing.T) {
	m, rec := newScene(t)
	_, err := m.ProcessAll(context.Background(), t.TempDir(), "[")
	assert.True(t, asset.IsValidation(err))

	_, err = m.ProcessAll(context.Background(), filepath.Join(t.TempDir(), "missing"), "*")
	assert.True(t, asset.IsIO(err))
	assert.Len(t, rec.errors, 2)
}

func TestLoadConcurrent(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"one.car", "two.car", "three.car", "four.car", "five.car"} {
		content := ""
		if name == "three.car" {
			content = "bad"
		}
		paths = append(paths, touch(t, dir, name, content))
	}

	result, err := m.LoadConcurrent(context.Background(), paths, asset.KindModel, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, rec.errors, 1)

	var names []string
	for _, model := range m.Models() {
		names = append(names, model.Name)
	}
	assert.Equal(t, []string{"one", "two", "four", "five"}, names)
	assert.Equal(t, []ChangeKind{ChangeMunge}, rec.changes)
	assert.Equal(t, 5, imp.Calls())

	// decodes are shared with Load
	_, err = Load[*asset.Model](m, imp, "one.car", dir, false)
	require.NoError(t, err)
	assert.Equal(t, 5, imp.Calls())
}

func TestLoadConcurrentCanceled(t *testing.T) {
	imp := carImporter(".car")
	m, _ := newScene(t, imp)
	dir := t.TempDir()
	paths := []string{touch(t, dir, "a.car", ""), touch(t, dir, "b.car", "")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := m.LoadConcurrent(ctx, paths, asset.KindModel, 2)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 0, result.Success)
	assert.Empty(t, m.Models())
}
