package storefront

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shortwatch-backend/lib/htmlutil"
	"shortwatch-backend/lib/restyutil"
	"shortwatch-backend/lib/scheduler"
	"shortwatch-backend/lib/snapshot"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const topSellersURL = "https://store.steampowered.com/search/?filter=globaltopsellers"

const Dataset = "storefront"

// Schema describes a best-seller ranking. Falling off the list is normal
// churn for a ranked listing, so drops are not materialized.
func Schema() snapshot.Schema {
	return snapshot.Schema{
		Dataset: Dataset,
		Fields: []snapshot.Field{
			{Name: "appid", Kind: snapshot.FieldString, Key: true},
			{Name: "title", Kind: snapshot.FieldString, Required: true},
			{Name: "rank", Kind: snapshot.FieldFloat, Required: true},
			{Name: "discount", Kind: snapshot.FieldString},
		},
		ValueField:  "rank",
		Tolerance:   0,
		RecordDrops: false,
	}
}

type Fetcher struct {
	client  *resty.Client
	baseURL string
	now     func() time.Time
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  restyutil.New(time.Second * 30),
		baseURL: topSellersURL,
		now:     time.Now,
	}
}

// FetchMarker returns the current hour. The storefront publishes no
// last-updated indicator, so snapshots are gated to at most one processed
// fetch per hour.
func (f *Fetcher) FetchMarker(ctx context.Context) (scheduler.Marker, error) {
	now := f.now()
	return scheduler.Marker{
		Value: now.Format("2006-01-02 15"),
		Time:  now.Truncate(time.Hour),
	}, nil
}

func (f *Fetcher) FetchSnapshot(ctx context.Context) ([]snapshot.RawRow, error) {
	res, err := f.client.R().SetContext(ctx).Get(f.baseURL)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("top sellers page returned %s", res.Status())
	}
	return ParseRows(res.Body())
}

// ParseRows reads the ranked result rows of a top-sellers search page.
// Rank is the position in document order, 1-based.
func ParseRows(page []byte) ([]snapshot.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var rows []snapshot.RawRow
	doc.Find(".search_result_row").Each(func(i int, s *goquery.Selection) {
		appid, _ := s.Attr("data-ds-appid")
		row := snapshot.RawRow{
			"appid":    strings.TrimSpace(appid),
			"title":    htmlutil.CellText(s.Find(".title").First()),
			"rank":     strconv.Itoa(i + 1),
			"discount": htmlutil.CellText(s.Find(".discount_pct").First()),
		}
		rows = append(rows, row)
	})
	return rows, nil
}
