package clean

import (
	"math"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

// DefaultSigma is the outlier cutoff multiplier when none is configured.
const DefaultSigma = 3.0

// RemoveOutliers removes measurements lying further than sigma standard
// deviations from the mean of their test code, computed over the whole
// batch. A code with fewer than two numeric values, or with zero variance,
// is never filtered. Records left without any analyses are dropped entirely.
func RemoveOutliers(records []models.PatientRecord, sigma float64) ([]models.PatientRecord, models.OutlierStats) {
	if sigma <= 0 {
		sigma = DefaultSigma
	}
	stats := models.OutlierStats{OutliersByTest: make(map[string]models.TestOutlierStats)}

	values := make(map[string][]float64)
	for _, rec := range records {
		for code, a := range rec.Analyses {
			if f, ok := NumericValue(a.Value); ok {
				values[code] = append(values[code], f)
			}
		}
	}

	bounds := make(map[string]models.OutlierBounds, len(values))
	moments := make(map[string][2]float64, len(values))
	for code, vs := range values {
		if len(vs) < 2 {
			continue
		}
		mean, std := meanStd(vs)
		if std == 0 {
			continue
		}
		bounds[code] = models.OutlierBounds{Lower: mean - sigma*std, Upper: mean + sigma*std}
		moments[code] = [2]float64{mean, std}
	}

	kept := make([]models.PatientRecord, 0, len(records))
	for _, rec := range records {
		filtered := make(map[string]models.Analysis, len(rec.Analyses))
		for code, a := range rec.Analyses {
			b, gated := bounds[code]
			if gated {
				if f, ok := NumericValue(a.Value); ok && (f < b.Lower || f > b.Upper) {
					m := moments[code]
					entry := stats.OutliersByTest[code]
					entry.Count++
					entry.Bounds = b
					entry.Mean = m[0]
					entry.Std = m[1]
					stats.OutliersByTest[code] = entry
					stats.TotalOutliers++
					continue
				}
			}
			filtered[code] = a
		}

		if len(filtered) == 0 {
			stats.TotalRemovedPatients++
			continue
		}
		rec.Analyses = filtered
		kept = append(kept, rec)
	}

	return kept, stats
}

// meanStd is the population mean and standard deviation.
func meanStd(vs []float64) (float64, float64) {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	mean := sum / float64(len(vs))

	var sq float64
	for _, v := range vs {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(vs)))
}
