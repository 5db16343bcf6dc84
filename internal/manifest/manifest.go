// Package manifest loads batch-analysis manifests: one media item per row,
// read from CSV or XLSX files with a media_id/media_type/media_url header.
package manifest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/veriscope/authenticity-engine/internal/model"
)

// Item is one media item queued for analysis.
type Item struct {
	MediaID   string
	MediaType model.MediaType
	MediaURL  string
}

// Ref converts the item into the reference the engine analyzes.
func (it Item) Ref() model.MediaRef {
	return model.MediaRef{
		MediaID:    it.MediaID,
		MediaType:  it.MediaType,
		LocatorURL: it.MediaURL,
	}
}

// Read loads a manifest, dispatching on the file extension.
func Read(path string) ([]Item, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("manifest: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV loads a manifest from a CSV file with a header row.
func ReadCSV(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open csv")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "manifest: read csv header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var items []Item
	line := 1 // header row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: read csv row %d", line)
		}
		item, ok, err := cols.item(record)
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: row %d", line)
		}
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// ReadXLSX loads a manifest from the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([]Item, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open xlsx")
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, eris.Errorf("manifest: %s has no rows", filepath.Base(path))
	}
	sheet := f.Sheets[0]

	cols, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var items []Item
	for i, row := range sheet.Rows[1:] {
		item, ok, err := cols.item(rowToStrings(row))
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: row %d", i+2)
		}
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// columns holds the manifest column positions; -1 marks an absent column.
type columns struct {
	id, typ, url int
}

func mapHeader(header []string) (columns, error) {
	cols := columns{id: -1, typ: -1, url: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "media_id":
			cols.id = i
		case "media_type":
			cols.typ = i
		case "media_url":
			cols.url = i
		}
	}
	if cols.typ == -1 {
		return cols, eris.New("manifest: header is missing media_type")
	}
	if cols.id == -1 && cols.url == -1 {
		return cols, eris.New("manifest: header needs media_id or media_url")
	}
	return cols, nil
}

// item builds an Item from one record. Blank rows report ok=false without an
// error so trailing empty lines don't fail a manifest.
func (c columns) item(record []string) (Item, bool, error) {
	get := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	it := Item{
		MediaID:   get(c.id),
		MediaType: model.MediaType(strings.ToLower(get(c.typ))),
		MediaURL:  get(c.url),
	}
	if it.MediaID == "" && it.MediaURL == "" && it.MediaType == "" {
		return Item{}, false, nil
	}
	if !it.MediaType.Valid() {
		return Item{}, false, eris.Errorf("invalid media type %q", string(it.MediaType))
	}
	if it.MediaID == "" && it.MediaURL == "" {
		return Item{}, false, eris.New("needs a media_id or media_url")
	}
	return it, true, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
