// Package transfer moves fullness from one gauge to another over a fixed
// duration. A transfer draws at most the source's headroom, multiplies what
// it draws into the sink, and credits a fraction back to the source when it
// completes.
package transfer

import "github.com/talgya/fullness/internal/gauge"

// Plan is the arithmetic of one transfer, fixed when it is admitted.
type Plan struct {
	Requested    float64 `json:"requested"`
	Actual       float64 `json:"actual"`
	Multiplier   float64 `json:"multiplier"`
	SourceStart  float64 `json:"source_start"`
	SourceTarget float64 `json:"source_target"`
	SinkStart    float64 `json:"sink_start"`
	SinkTarget   float64 `json:"sink_target"`
	Credit       float64 `json:"credit"` // returned to the source on completion
}

// Compute plans a standard transfer.
//
//	actual       = min(requested, source - floor)
//	sourceTarget = clamp(source - actual)
//	sinkTarget   = clamp(sink + actual*multiplier)
//	credit       = actual * multiplier * returnFraction
func Compute(source, sink, requested, multiplier, returnFraction float64) Plan {
	requested = max(0, requested)
	multiplier = max(0, multiplier)
	headroom := max(0, source-gauge.Floor)
	actual := min(requested, headroom)
	return Plan{
		Requested:    requested,
		Actual:       actual,
		Multiplier:   multiplier,
		SourceStart:  source,
		SourceTarget: gauge.ClampUnit(source - actual),
		SinkStart:    sink,
		SinkTarget:   gauge.ClampUnit(sink + actual*multiplier),
		Credit:       actual * multiplier * gauge.Clamp01(returnFraction),
	}
}

// ComputeGift plans the giver's reverse transfer: the sink is driven to the
// ceiling and the source to the floor, with nothing returned.
func ComputeGift(source, sink float64) Plan {
	return Plan{
		Requested:    source - gauge.Floor,
		Actual:       source - gauge.Floor,
		Multiplier:   1,
		SourceStart:  source,
		SourceTarget: gauge.Floor,
		SinkStart:    sink,
		SinkTarget:   gauge.Ceil,
	}
}
