// Package export writes address lists as plain text, Excel workbooks and
// GeoJSON.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// Format is an export file format.
type Format string

const (
	FormatText    Format = "txt"
	FormatXLSX    Format = "xlsx"
	FormatGeoJSON Format = "geojson"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Addresses"

// Header is the first row of the XLSX export.
var Header = []string{"Address", "Lat", "Lng", "Exported At", "Flier Sent", "Last Marked"}

// ParseFormat accepts txt, xlsx or geojson, case-insensitively. An empty
// name means txt.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatXLSX, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidInput, name)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Filename returns the download name for base in format f.
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Write encodes records to w in format f.
func Write(f Format, w io.Writer, records []domain.AddressRecord) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatGeoJSON:
		return WriteGeoJSON(w, records)
	default:
		names := make([]string, len(records))
		for i, r := range records {
			names[i] = r.Address
		}
		return WriteText(w, names)
	}
}

// WriteText writes one address per line with no trailing newline.
func WriteText(w io.Writer, addresses []string) error {
	_, err := io.WriteString(w, strings.Join(addresses, "\n"))
	if err != nil {
		return eris.Wrap(err, "export: write text")
	}
	return nil
}

// WriteTextFile writes addresses to dir/name, replacing any existing file,
// and returns the full path.
func WriteTextFile(dir, name string, addresses []string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidInput, name)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "export: create file")
	}
	if err := WriteText(f, addresses); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "export: close file")
	}
	return path, nil
}

// WriteXLSX writes records to a single-sheet workbook.
func WriteXLSX(w io.Writer, records []domain.AddressRecord) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Address)
		row.AddCell().SetFloat(r.Lat)
		row.AddCell().SetFloat(r.Lng)
		row.AddCell().SetString(formatTime(&r.ExportedAt))
		row.AddCell().SetString(yesNo(r.FlierSent))
		row.AddCell().SetString(formatTime(r.LastMarked))
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// WriteGeoJSON writes records as a FeatureCollection of points.
func WriteGeoJSON(w io.Writer, records []domain.AddressRecord) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		f := geojson.NewFeature(orb.Point{r.Lng, r.Lat})
		if r.ID != 0 {
			f.ID = r.ID
		}
		f.Properties["address"] = r.Address
		f.Properties["flier_sent"] = r.FlierSent
		if !r.ExportedAt.IsZero() {
			f.Properties["exported_at"] = r.ExportedAt.UTC().Format(time.RFC3339)
		}
		if r.LastMarked != nil {
			f.Properties["last_marked"] = r.LastMarked.UTC().Format(time.RFC3339)
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}

// RecordsFromLocated turns freshly enumerated addresses into unsaved records
// stamped with at.
func RecordsFromLocated(located []domain.LocatedAddress, at time.Time) []domain.AddressRecord {
	out := make([]domain.AddressRecord, len(located))
	for i, l := range located {
		out[i] = domain.AddressRecord{
			Address:    l.Address,
			Lat:        l.Location.Lat,
			Lng:        l.Location.Lng,
			ExportedAt: at,
		}
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
