package imaging

import (
	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// TrackResult is the reported form of one lk.Match call.
type TrackResult struct {
	// Point is the tracked location in the reference image.
	Point lk.Vec2 `json:"point"`

	Prediction lk.Vec2 `json:"prediction"`

	// Status is "ok", "ill_conditioned", "diverged" or "out_of_bounds".
	Status string `json:"status"`

	// Displacement is (-1, -1) unless Status is "ok".
	Displacement lk.Vec2 `json:"displacement"`

	// Position is Point + Displacement, only set on success.
	Position *lk.Vec2 `json:"position,omitempty"`

	// Error is the normalized residual on success, 1000 for
	// ill-conditioned windows and the float32 maximum otherwise.
	Error float64 `json:"error"`

	Iterations int `json:"iterations"`

	Flow *FlowStats `json:"flow,omitempty"`
}

// TrackPoint matches p from a into b. The gradient of a drives the
// refinement; b's gradient is not used.
func TrackPoint(m *lk.Matcher, a, b *Planes, p, prediction lk.Vec2, minEV float64) lk.Result {
	return lk.Match(m, p, prediction, a.Image, b.Image, a.Gradient, minEV)
}

// NewTrackResult converts a match outcome for reporting.
func NewTrackResult(p, prediction lk.Vec2, r lk.Result) TrackResult {
	tr := TrackResult{
		Point:        p,
		Prediction:   prediction,
		Status:       r.Status.String(),
		Displacement: r.Displacement,
		Error:        r.Error,
		Iterations:   r.Iterations,
	}
	if r.OK() {
		pos := p.Add(r.Displacement)
		flow := FlowVector(r.Displacement)
		tr.Position = &pos
		tr.Flow = &flow
	}
	return tr
}
