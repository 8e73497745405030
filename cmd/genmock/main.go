// Command genmock writes synthetic raw ERA5 files for the fixed years so the
// ETL can be smoke-tested without downloading from the Copernicus CDS. The
// values are deterministic and use the same variables, units and layout as
// the instantaneous ERA5 single-levels stream.
//
// Usage:
//
//	go run ./cmd/genmock -raw-dir ../data/raw/era5-datasets -times 24 -lats 8 -lons 8
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/era5-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/era5-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rawDir := flag.String("raw-dir", sharedcfg.EnvOrDefault("ERA5_RAW_DIR", "../data/raw/era5-datasets"), "raw ERA5 root directory")
	times := flag.Int("times", 24, "hourly time steps per year")
	lats := flag.Int("lats", 8, "latitude points")
	lons := flag.Int("lons", 8, "longitude points")
	cdsCoords := flag.Bool("cds-coords", true, "add the number and expver coordinates of current CDS downloads")
	flag.Parse()

	if *times <= 0 || *lats <= 0 || *lons <= 0 {
		flag.Usage()
		return fmt.Errorf("grid sizes must be positive")
	}

	grid := domain.SyntheticGrid{Times: *times, Lats: *lats, Lons: *lons, CDSCoords: *cdsCoords}
	reader := netcdf.NewReader(*rawDir, slog.Default())

	for _, year := range domain.Years {
		path := reader.Path(year)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := netcdf.WriteFile(path, domain.SyntheticDataset(year, grid)); err != nil {
			return fmt.Errorf("year %d: %w", year, err)
		}
		log.Printf("%d: wrote %s (%d cells)", year, path, grid.Times*grid.Lats*grid.Lons)
	}
	return nil
}
