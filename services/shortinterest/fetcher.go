package shortinterest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"shortwatch-backend/lib/htmlutil"
	"shortwatch-backend/lib/restyutil"
	"shortwatch-backend/lib/scheduler"
	"shortwatch-backend/lib/snapshot"
	"shortwatch-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// The FI short interest register publishes aggregate net short positions
// per issuer. The register page carries a "Listan uppdaterades" paragraph
// which acts as the cheap update marker.
const (
	registerURL = "https://www.fi.se/sv/vara-register/blankningsregistret/"

	markerPrefix = "Listan uppdaterades:"
	markerLayout = "2006-01-02 15:04"
)

const Dataset = "shortinterest"

// Schema describes the register's tabular shape. Disappearance from the
// register means the position fell below the reporting threshold, so drops
// are recorded as explicit zero rows.
func Schema() snapshot.Schema {
	return snapshot.Schema{
		Dataset: Dataset,
		Fields: []snapshot.Field{
			{Name: "company_name", Kind: snapshot.FieldString, Key: true},
			{Name: "lei", Kind: snapshot.FieldString, Key: true},
			{Name: "position_percent", Kind: snapshot.FieldFloat, Required: true},
			{Name: "latest_position_date", Kind: snapshot.FieldDate},
		},
		ValueField:   "position_percent",
		Tolerance:    0.001,
		AbsenceValue: 0,
		RecordDrops:  true,
	}
}

type Fetcher struct {
	client  *resty.Client
	baseURL string
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  restyutil.New(time.Second * 30),
		baseURL: registerURL,
	}
}

func (f *Fetcher) FetchMarker(ctx context.Context) (scheduler.Marker, error) {
	res, err := f.client.R().SetContext(ctx).Get(f.baseURL)
	if err != nil {
		return scheduler.Marker{}, err
	}
	if res.IsError() {
		return scheduler.Marker{}, fmt.Errorf("register page returned %s", res.Status())
	}
	return ParseMarker(res.Body())
}

func (f *Fetcher) FetchSnapshot(ctx context.Context) ([]snapshot.RawRow, error) {
	res, err := f.client.R().SetContext(ctx).Get(f.baseURL + "GetBlankningsregisterAggregat/")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("register aggregate returned %s", res.Status())
	}
	return ParseRows(res.Body())
}

// ParseMarker extracts the register's self-reported last-update time.
func ParseMarker(page []byte) (scheduler.Marker, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return scheduler.Marker{}, err
	}

	var raw string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := htmlutil.CellText(s)
		if strings.HasPrefix(text, markerPrefix) {
			raw = strings.TrimSpace(strings.TrimPrefix(text, markerPrefix))
			return false
		}
		return true
	})
	if raw == "" {
		return scheduler.Marker{}, fmt.Errorf("no %q paragraph on register page", markerPrefix)
	}

	marker := scheduler.Marker{Value: raw}
	// the register publishes local time with no offset
	if t, err := time.ParseInLocation(markerLayout, raw, timezone.Stockholm); err == nil {
		marker.Time = t
	}
	return marker, nil
}

// ParseRows reads the aggregate position table. Header cells name the
// columns in Swedish; they are mapped to canonical field names here so the
// normalizer never sees source-specific spellings.
func ParseRows(page []byte) ([]snapshot.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	columns := map[string]string{
		"Bolagsnamn":                          "company_name",
		"LEI":                                 "lei",
		"Position i procent":                  "position_percent",
		"Senast rapporterade positionens dag": "latest_position_date",
	}

	var header []string
	known := 0
	doc.Find("table thead th").Each(func(_ int, s *goquery.Selection) {
		text := htmlutil.CellText(s)
		if _, ok := columns[text]; ok {
			known++
		}
		header = append(header, text)
	})
	// a restyled or replaced page must abort the cycle rather than read
	// as a register where every position vanished
	if known < len(columns) {
		return nil, fmt.Errorf("%w: register table header has %d of %d expected columns",
			snapshot.ErrSchemaMismatch, known, len(columns))
	}

	var rows []snapshot.RawRow
	doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		row := snapshot.RawRow{}
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i >= len(header) {
				return
			}
			name, known := columns[header[i]]
			if !known {
				return
			}
			row[name] = htmlutil.CellText(td)
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	return rows, nil
}
