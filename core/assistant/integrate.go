package assistant

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
)

const (
	DefaultSamples = 10_000
	MaxSamples     = 1_000_000

	z95 = 1.959963984540054
)

var errNonFinite = errors.New("the expression is not finite over the interval")

type IntegrateInput struct {
	Expression string  `json:"expression" validate:"required,max=500"`
	A          float64 `json:"a"`
	B          float64 `json:"b"`
	Samples    int     `json:"samples" validate:"omitempty,min=1,max=1000000"`
	Seed       *int64  `json:"seed"`
}

func (in *IntegrateInput) Validate(validate *validator.Validate) error {
	in.Expression = core.CleanString(in.Expression)
	if in.Samples == 0 {
		in.Samples = DefaultSamples
	}
	return validate.Struct(in)
}

type IntegrateOutput struct {
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	Low      float64 `json:"low"` // 95% confidence interval
	High     float64 `json:"high"`
	Samples  int     `json:"samples"`
	Seed     int64   `json:"seed"`
}

// Integrate estimates ∫ f(x) dx over [a, b] by uniform Monte Carlo sampling.
// b < a integrates backwards and negates the result.
func Integrate(f Expr, a, b float64, n int, seed int64) (IntegrateOutput, error) {
	if n < 1 || n > MaxSamples {
		return IntegrateOutput{}, errors.Errorf("samples must be between 1 and %d", MaxSamples)
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return IntegrateOutput{}, errors.New("bounds must be finite")
	}
	out := IntegrateOutput{Samples: n, Seed: seed}
	width := b - a
	if width == 0 {
		return out, nil
	}

	rng := rand.New(rand.NewSource(seed))
	// Welford's running mean & variance
	var mean, m2 float64
	for i := 1; i <= n; i++ {
		y := f(a + rng.Float64()*width)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return IntegrateOutput{}, errNonFinite
		}
		d := y - mean
		mean += d / float64(i)
		m2 += d * (y - mean)
	}

	out.Estimate = width * mean
	if n > 1 {
		out.StdError = math.Abs(width) * math.Sqrt(m2/float64(n-1)/float64(n))
	}
	out.Low = out.Estimate - z95*out.StdError
	out.High = out.Estimate + z95*out.StdError
	return out, nil
}

func newSeed() int64 { return time.Now().UnixNano() }
