package processors

import (
	"errors"
	"fmt"

	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

// ErrMixedRegions is returned when a batch spans tax regions beyond the tolerance.
var ErrMixedRegions = errors.New("batch mixes regions")

const regionOther = "OTHER"

// RegionReport is the result of region detection over a batch.
type RegionReport struct {
	Region        models.Region
	Counts        map[string]int
	MinorityShare float64
	Warnings      []string
}

// ClassifyTicker maps a ticker to a region by its exchange suffix or prefix.
// Bare tickers are treated as US listings.
func ClassifyTicker(ticker string) models.Region {
	info, found, bare := utils.LookupExchange(ticker)
	if bare {
		return models.RegionUS
	}
	if !found {
		return models.RegionUnknown
	}
	switch info.Country {
	case "IN":
		return models.RegionIndia
	case "US":
		return models.RegionUS
	}
	return models.RegionUnknown
}

// DetectRegion picks the majority region of the tickers. Rows of any other
// region, unknown exchanges included, form the minority; if their share
// exceeds tolerance the batch is rejected with ErrMixedRegions.
func DetectRegion(tickers []string, tolerance float64) (RegionReport, error) {
	report := RegionReport{Region: models.RegionUS, Counts: make(map[string]int)}
	if len(tickers) == 0 {
		return report, nil
	}

	for _, t := range tickers {
		report.Counts[regionKey(ClassifyTicker(t))]++
	}

	india, us := report.Counts[string(models.RegionIndia)], report.Counts[string(models.RegionUS)]
	majority := us
	if india > us {
		report.Region = models.RegionIndia
		majority = india
	}

	total := len(tickers)
	report.MinorityShare = float64(total-majority) / float64(total)
	if majority == 0 || report.MinorityShare > tolerance {
		return report, fmt.Errorf("%w: %d IN, %d US, %d other rows (tolerance %.0f%%)",
			ErrMixedRegions, india, us, report.Counts[regionOther], tolerance*100)
	}
	if total > majority {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"%d of %d rows are not listed in region %s; they are taxed as %s", total-majority, total, report.Region, report.Region))
	}
	return report, nil
}

func regionKey(r models.Region) string {
	if r == models.RegionUnknown {
		return regionOther
	}
	return string(r)
}
