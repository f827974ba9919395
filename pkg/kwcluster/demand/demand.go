// Package demand converts raw keyword metrics into a comparable
// monthly search-demand figure.
package demand

import "time"

// Source labels for the winning metric.
const (
	SourceGSC    = "gsc"
	SourceUpload = "upload"
	SourceNone   = "none"
)

const daysPerMonth = 30.4375

// Metric is one observation of a keyword from one data source.
type Metric struct {
	SourceType  string
	Impressions float64
	Volume      float64
	DateFrom    time.Time
	DateTo      time.Time
}

// Monthly converts impressions over a date span into a monthly
// equivalent. Spans shorter than a day are clamped so a single-day
// sample extrapolates to a month instead of dividing by zero.
func Monthly(impressions float64, from, to time.Time) float64 {
	daySpan := to.Sub(from).Hours() / 24
	months := daySpan / daysPerMonth
	if months < 1/daysPerMonth {
		months = 1 / daysPerMonth
	}
	return impressions / months
}

// Aggregate reduces all metrics for one keyword to a single monthly
// demand and its source. Search-analytics impressions win over an
// uploaded volume figure whenever they yield a positive value, because
// observed impressions reflect actual demand while upload volumes are
// tool estimates. Within a source, the maximum across metrics wins.
func Aggregate(metrics []Metric) (monthly float64, source string) {
	var gsc, upload float64
	for _, m := range metrics {
		switch m.SourceType {
		case SourceGSC:
			if v := Monthly(m.Impressions, m.DateFrom, m.DateTo); v > gsc {
				gsc = v
			}
		default:
			if m.Volume > upload {
				upload = m.Volume
			}
		}
	}
	if gsc > 0 {
		return gsc, SourceGSC
	}
	if upload > 0 {
		return upload, SourceUpload
	}
	return 0, SourceNone
}
