package api

import (
	"github.com/bokononistmonkey/Mosaic/core/stream"
	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
)

// QueryReq is the /api/query request body. uint8 channels make the
// decoder reject out-of-range values on its own.
type QueryReq struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (q *QueryReq) toRGB() colorutils.RGB {
	return colorutils.RGB{R: q.R, G: q.G, B: q.B}
}

// RGBView is a color in wire form.
type RGBView struct {
	R   uint8  `json:"r"`
	G   uint8  `json:"g"`
	B   uint8  `json:"b"`
	Hex string `json:"hex"`
}

// conv colorutils.RGB -> RGBView.
func rgbToView(c colorutils.RGB) RGBView {
	return RGBView{R: c.R, G: c.G, B: c.B, Hex: c.Hex()}
}

// QueryResp describes the element chosen for one query.
type QueryResp struct {
	ID        uint32  `json:"id"`
	Color     RGBView `json:"color"`
	BucketAvg RGBView `json:"bucketAvg"`
	Uses      int     `json:"uses"`
}

// BucketView is one bucket row of a SummaryView.
type BucketView struct {
	Avg  RGBView `json:"avg"`
	Size int     `json:"size"`
}

// SummaryView mirrors tilemap.Summary with json tags.
type SummaryView struct {
	Buckets  int          `json:"buckets"`
	Elements int          `json:"elements"`
	Balanced bool         `json:"balanced"`
	Items    []BucketView `json:"items"`
}

// conv tilemap.Summary -> SummaryView.
func summaryToView(s tilemap.Summary) SummaryView {
	v := SummaryView{
		Buckets:  s.Buckets,
		Elements: s.Elements,
		Balanced: s.Balanced,
		Items:    make([]BucketView, len(s.Items)),
	}
	for i, item := range s.Items {
		v.Items[i] = BucketView{Avg: rgbToView(item.Avg), Size: item.Size}
	}
	return v
}

// CountersView mirrors stream.Counters with json tags.
type CountersView struct {
	Frames       int     `json:"frames"`
	LastRenderMS float64 `json:"lastRenderMs"`
}

// conv stream.Counters -> CountersView.
func countersToView(c stream.Counters) CountersView {
	return CountersView{
		Frames:       c.Frames,
		LastRenderMS: float64(c.LastRender.Microseconds()) / 1000,
	}
}

// StatsResp is the /api/stats response body.
type StatsResp struct {
	Index SummaryView  `json:"index"`
	Loop  CountersView `json:"loop"`
}

// ErrResp is the body of every non-2xx JSON response.
type ErrResp struct {
	Error string `json:"error"`
}
