package assessment

import "math"

// GradeBand is a grade awarded from Min percent upwards.
type GradeBand struct {
	Grade       string  `json:"grade"`
	Description string  `json:"description"`
	Min         float64 `json:"min"`
}

// GradingScale lists grade bands from the highest Min down to 0.
type GradingScale []GradeBand

// DefaultScale is the CBC four-level rubric.
var DefaultScale = GradingScale{
	{Grade: "EE", Description: "Exceeding Expectations", Min: 80},
	{Grade: "ME", Description: "Meeting Expectations", Min: 60},
	{Grade: "AE", Description: "Approaching Expectations", Min: 40},
	{Grade: "BE", Description: "Below Expectations", Min: 0},
}

// Grade returns the band pct falls in.
func (s GradingScale) Grade(pct float64) GradeBand {
	for _, band := range s {
		if pct >= band.Min {
			return band
		}
	}
	return s[len(s)-1]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
