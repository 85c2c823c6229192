// Package height prepares the static elevation field from a bathymetry
// raster (e.g. GEBCO) by shelling out to gdalwarp, with a degraded
// nearest-neighbour fallback when the tool is not installed.
package height

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/voltatlas/cutout/internal/dataset"
)

// Variable is the name the elevation field is merged under.
const Variable = "height"

// Config locates the source raster and the resampling tool. An explicit
// config is passed in rather than read from process-wide state so the
// component can be tested with injected paths.
type Config struct {
	// RasterPath is the bathymetry raster, stored as an XYZ grid
	// ("x y z" per line). Required.
	RasterPath string
	// WarpCommand overrides the resampling binary. Defaults to "gdalwarp".
	WarpCommand string
}

// PrepareHeight resamples the raster onto the cutout grid. gdalwarp is
// invoked with a bounding box expanded by half a grid cell so averaged cells
// are centred on the axis points. If the tool is missing the original raster
// is reindexed by nearest neighbour instead, with a single warning; a
// non-zero exit from the tool is fatal.
func PrepareHeight(ctx context.Context, logger *slog.Logger, cfg Config, xs, ys []float64) (*dataset.Field, error) {
	if cfg.RasterPath == "" {
		return nil, errors.New("height preparation requires a raster path")
	}
	if len(xs) < 2 || len(ys) < 2 {
		return nil, fmt.Errorf("height preparation needs at least 2 points per axis, got %dx%d", len(xs), len(ys))
	}

	tmpdir, err := os.MkdirTemp("", "cutout-height-")
	if err != nil {
		return nil, fmt.Errorf("create height workdir: %w", err)
	}
	defer os.RemoveAll(tmpdir)

	minx, miny, maxx, maxy := expandedBounds(xs, ys)
	resampled := filepath.Join(tmpdir, "resampled.xyz")
	warp := cfg.WarpCommand
	if warp == "" {
		warp = "gdalwarp"
	}

	src := resampled
	cmd := exec.CommandContext(ctx, warp,
		"-of", "XYZ",
		"-ts", strconv.Itoa(len(xs)), strconv.Itoa(len(ys)),
		"-te", formatCoord(minx), formatCoord(miny), formatCoord(maxx), formatCoord(maxy),
		"-r", "average",
		cfg.RasterPath, resampled,
	)
	if err := cmd.Run(); err != nil {
		if isNotFound(err) {
			logger.Warn("resampling tool not found, falling back to nearest-neighbour interpolation of the original raster",
				slog.String("command", warp))
			src = cfg.RasterPath
		} else {
			return nil, fmt.Errorf("%s was not able to resample %s: %w", warp, cfg.RasterPath, err)
		}
	}

	raw, err := readXYZ(src)
	if err != nil {
		return nil, err
	}
	return raw.Reindex(ys, xs), nil
}

// expandedBounds returns the raster target extent: the axis-corner bounding
// box grown by half a cell on every side.
func expandedBounds(xs, ys []float64) (minx, miny, maxx, maxy float64) {
	minx, maxx = math.Min(xs[0], xs[len(xs)-1]), math.Max(xs[0], xs[len(xs)-1])
	miny, maxy = math.Min(ys[0], ys[len(ys)-1]), math.Max(ys[0], ys[len(ys)-1])
	spanx := (maxx - minx) / float64(len(xs)-1)
	spany := (maxy - miny) / float64(len(ys)-1)
	return minx - spanx/2, miny - spany/2, maxx + spanx/2, maxy + spany/2
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound)
}
