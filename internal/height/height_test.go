package height

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gebco.xyz")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const rasterContent = `# x y z
0.0 50.0 -10.0
1.0 50.0 -20.0
0.0 51.0 30.0
1.0 51.0 40.0
`

func TestReadXYZ(t *testing.T) {
	path := writeRaster(t, rasterContent)
	fld, err := readXYZ(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, fld.X)
	assert.Equal(t, []float64{50, 51}, fld.Y)
	assert.Equal(t, -10.0, fld.Values[0][0])
	assert.Equal(t, 40.0, fld.Values[1][1])
}

func TestReadXYZRejectsMalformedLines(t *testing.T) {
	path := writeRaster(t, "0.0 50.0\n")
	_, err := readXYZ(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3 columns")
}

func TestPrepareHeightFallsBackWhenToolMissing(t *testing.T) {
	path := writeRaster(t, rasterContent)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := Config{RasterPath: path, WarpCommand: "definitely-not-a-real-warp-binary"}
	fld, err := PrepareHeight(context.Background(), logger, cfg, []float64{0, 1}, []float64{50, 51})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "falling back")
	require.Len(t, fld.Values, 2)
	assert.Equal(t, -10.0, fld.Values[0][0])
	assert.Equal(t, 40.0, fld.Values[1][1])
}

func TestPrepareHeightFailsOnToolError(t *testing.T) {
	path := writeRaster(t, rasterContent)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// "false" exists but exits non-zero, which must be fatal rather than a
	// fallback.
	cfg := Config{RasterPath: path, WarpCommand: "false"}
	_, err := PrepareHeight(context.Background(), logger, cfg, []float64{0, 1}, []float64{50, 51})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not able to resample")
}

func TestPrepareHeightRequiresRaster(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_, err := PrepareHeight(context.Background(), logger, Config{}, []float64{0, 1}, []float64{50, 51})
	require.Error(t, err)
}

func TestExpandedBounds(t *testing.T) {
	minx, miny, maxx, maxy := expandedBounds([]float64{0, 1, 2}, []float64{50, 52})
	assert.Equal(t, -0.5, minx)
	assert.Equal(t, 2.5, maxx)
	assert.Equal(t, 49.5, miny)
	assert.Equal(t, 52.5, maxy)
}
