package accessory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

func TestRoundTrip(t *testing.T) {
	src := &asset.Accessory{Name: "roof_rack", Type: "static", Model: "rack.cnt", Mass: 12.5, Tags: []string{"roof", "breakable"}}
	path := filepath.Join(t.TempDir(), "accessory.txt")
	ctx := pipeline.NewContext(nil, asset.LeftHanded)
	require.NoError(t, ctx.ExportFile(src, path, nil))

	a, err := ctx.ImportFile(path, asset.KindDocument)
	require.NoError(t, err)
	assert.Equal(t, src, a.(*asset.Accessory))
}

func TestNewFromData(t *testing.T) {
	a, err := NewFromData([]byte("name: cone\ntype: dynamic\nmass: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, &asset.Accessory{Name: "cone", Type: "dynamic", Mass: 2}, a)

	for name, data := range map[string]string{
		"empty":         "",
		"no name":       "type: dynamic\n",
		"negative mass": "name: x\nmass: -1\n",
		"unknown field": "name: x\ncolour: red\n",
		"not yaml":      "name: [x\n",
	} {
		_, err := NewFromData([]byte(data))
		assert.Error(t, err, name)
	}
}
