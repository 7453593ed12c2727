package imaging

import (
	"math"

	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// FlowStats describes a displacement vector.
type FlowStats struct {
	Magnitude    float64 `json:"magnitude"`
	AngleDegrees float64 `json:"angle_degrees"`
}

// FlowVector measures a displacement. Angles follow image coordinates:
// 0 is rightward and 90 is downward.
func FlowVector(d lk.Vec2) FlowStats {
	return FlowStats{
		Magnitude:    math.Round(d.Norm()*1000) / 1000,
		AngleDegrees: math.Round(math.Atan2(d.Y, d.X)*180/math.Pi*10) / 10,
	}
}

// FlowSummary aggregates the successful tracks of a batch.
type FlowSummary struct {
	Tracked int `json:"tracked"`
	Failed  int `json:"failed"`

	// MeanDisplacement and the spreads are computed over successful
	// tracks only. A small spread means the points moved coherently.
	MeanDisplacement lk.Vec2   `json:"mean_displacement"`
	SpreadX          float64   `json:"spread_x"`
	SpreadY          float64   `json:"spread_y"`
	MeanError        float64   `json:"mean_error"`
	MeanFlow         FlowStats `json:"mean_flow"`
}

// SummarizeFlow computes the mean and standard deviation of the
// displacements of the successful results.
func SummarizeFlow(results []lk.Result) FlowSummary {
	var s FlowSummary
	var sumX, sumY, sumErr float64
	for _, r := range results {
		if !r.OK() {
			s.Failed++
			continue
		}
		s.Tracked++
		sumX += r.Displacement.X
		sumY += r.Displacement.Y
		sumErr += r.Error
	}
	if s.Tracked == 0 {
		return s
	}

	n := float64(s.Tracked)
	mean := lk.Vec2{X: sumX / n, Y: sumY / n}

	var varX, varY float64
	for _, r := range results {
		if !r.OK() {
			continue
		}
		dx := r.Displacement.X - mean.X
		dy := r.Displacement.Y - mean.Y
		varX += dx * dx
		varY += dy * dy
	}

	s.MeanDisplacement = lk.Vec2{X: round3(mean.X), Y: round3(mean.Y)}
	s.SpreadX = round3(math.Sqrt(varX / n))
	s.SpreadY = round3(math.Sqrt(varY / n))
	s.MeanError = round3(sumErr / n)
	s.MeanFlow = FlowVector(mean)
	return s
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
