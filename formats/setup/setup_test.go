package setup

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

func TestParse(t *testing.T) {
	const script = `module((...), vehicle_setup_context)

-- handling
PowerMultiplier{ Value = 1.5 }
TorqueCurve{[1]=150, [2]=232,}
Name{Value="Eagle \"R\""}
Flags{Enabled=true}
Empty{}
PowerMultiplier{Value=-2.5e1}
`
	s, err := Parse([]byte(script))
	require.NoError(t, err)
	assert.Equal(t, "vehicle", s.Context)
	require.Len(t, s.Methods, 5)

	v, ok := s.Parameter("PowerMultiplier", "Value")
	assert.True(t, ok)
	assert.Equal(t, "-2.5e1", v)
	v, _ = s.Parameter("TorqueCurve", "2")
	assert.Equal(t, "232", v)
	v, _ = s.Parameter("Name", "Value")
	assert.Equal(t, `Eagle "R"`, v)
	v, _ = s.Parameter("Flags", "Enabled")
	assert.Equal(t, "true", v)
	assert.NotNil(t, s.Method("Empty"))
}

func TestRoundTrip(t *testing.T) {
	src := asset.NewVehicleSetup()
	src.SetParameter("Label", "Text", "two words")
	src.SetParameter("Label", "odd key", "x")

	path := filepath.Join(t.TempDir(), "setup.lol")
	ctx := pipeline.NewContext(nil, asset.LeftHanded)
	require.NoError(t, ctx.ExportFile(src, path, nil))

	a, err := ctx.ImportFile(path, asset.KindDocument)
	require.NoError(t, err)
	assert.Equal(t, src, a.(*asset.Setup))
}

func TestMarshalDefaults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Marshal(&buf, asset.NewVehicleSetup()))
	assert.Contains(t, buf.String(), "module((...), vehicle_setup_context)\n")
	assert.Contains(t, buf.String(), "TorqueCurve{[1]=150,[2]=232}\n")
	assert.Contains(t, buf.String(), "Mass{Value=1300}\n")
}

func TestContextSetting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.lol")
	s := pipeline.DefaultSettings()
	s.Extras = pipeline.NewBag().Set("Context", "pedestrian")
	src := asset.NewVehicleSetup()
	require.NoError(t, (&Exporter{Info: info}).Export(pipeline.NewContext(nil, asset.LeftHanded), src, path, s))
	assert.Equal(t, "vehicle", src.Context)

	a, err := (&Importer{Info: info}).Import(pipeline.NewContext(nil, asset.LeftHanded), path)
	require.NoError(t, err)
	assert.Equal(t, "pedestrian", a.(*asset.Setup).Context)
}

func TestParseErrors(t *testing.T) {
	for name, script := range map[string]string{
		"unclosed":      "Mass{Value=1",
		"missing value": "Mass{Value=}",
		"no brace":      "Mass Value=1",
		"bad module":    "module(vehicle)",
		"garbage":       "Mass{Value=1} @",
		"bad key":       "Mass{[x]=1}",
	} {
		_, err := Parse([]byte(script))
		assert.Error(t, err, name)
	}
}
