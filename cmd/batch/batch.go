package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/export"
	"github.com/samirrijal/canvass/internal/pkg/geospatial"
)

type batch struct {
	regions     *usecases.RegionService
	store       ports.AddressRepository
	step        domain.StepSize
	format      export.Format
	dir         string
	concurrency int
	now         func() time.Time
}

type regionReport struct {
	Name      string
	File      string
	Addresses int
	Err       error
}

// run scans every region and returns one report per region, in input
// order. A failed region does not stop the others.
func (b *batch) run(ctx context.Context, regions []geospatial.NamedPolygon) []regionReport {
	reports := make([]regionReport, len(regions))
	used := map[string]int{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for i, region := range regions {
		base := fileBase(region.Name)
		if n := used[base]; n > 0 {
			used[base] = n + 1
			base = base + "-" + strconv.Itoa(n+1)
		} else {
			used[base] = 1
		}

		g.Go(func() error {
			r := regionReport{Name: region.Name}
			r.File, r.Addresses, r.Err = b.one(ctx, region.Polygon, base)
			if r.Err != nil {
				slog.Error("region failed", "region", region.Name, "error", r.Err)
			} else {
				slog.Info("region done", "region", region.Name, "addresses", r.Addresses, "file", r.File)
			}
			mu.Lock()
			reports[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (b *batch) one(ctx context.Context, polygon domain.Polygon, base string) (string, int, error) {
	set, _, err := b.regions.Enumerate(ctx, polygon, b.step)
	if err != nil {
		return "", 0, err
	}
	located := set.Located()

	if b.store != nil && len(located) > 0 {
		if _, err := b.store.UpsertBatch(ctx, located); err != nil {
			return "", 0, eris.Wrap(err, "store addresses")
		}
	}

	path := filepath.Join(b.dir, b.format.Filename(base))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	if err := export.Write(b.format, f, export.RecordsFromLocated(located, b.now())); err != nil {
		return "", 0, err
	}
	return path, set.Len(), f.Close()
}

// fileBase turns a feature name into a safe file name stem.
func fileBase(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(sb.String(), "-")
	if out == "" {
		return "region"
	}
	return out
}
