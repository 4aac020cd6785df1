package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/airqlab/airq/internal/analytics"
)

// linearFit is an OLS line of value against hours elapsed since the first point
type linearFit struct {
	slope     float64
	intercept float64
	stdError  float64

	n      float64
	meanX  float64
	sumX2  float64
	lastX  float64
	lastY  float64
	lastT  time.Time
	meanY  float64
	rangeY float64

	fitted []float64
}

func fitLinear(series analytics.MetricSeries) (*linearFit, error) {
	n := float64(series.Len())
	first := series[0].Time

	xs := make([]float64, series.Len())
	ys := series.Values()

	// Calculate sums for linear regression
	sumX := 0.0
	sumX2 := 0.0
	for i, p := range series {
		x := p.Time.Sub(first).Hours()
		xs[i] = x
		sumX += x
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return nil, analytics.ErrRegressionDegenerate
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	fitted := make([]float64, len(xs))
	sumSquaredError := 0.0
	for i, x := range xs {
		fitted[i] = intercept + slope*x
		r := ys[i] - fitted[i]
		sumSquaredError += r * r
	}

	last := series[series.Len()-1]
	return &linearFit{
		slope:     slope,
		intercept: intercept,
		stdError:  math.Sqrt(sumSquaredError / math.Max(1, n-2)),
		n:         n,
		meanX:     sumX / n,
		sumX2:     sumX2,
		lastX:     xs[len(xs)-1],
		lastY:     last.Value,
		lastT:     last.Time,
		meanY:     stat.Mean(ys, nil),
		rangeY:    floats.Max(ys) - floats.Min(ys),
		fitted:    fitted,
	}, nil
}

// predStdError is the standard error of a new observation at x
func (f *linearFit) predStdError(x float64) float64 {
	xDiff := x - f.meanX
	return f.stdError * math.Sqrt(1+1/f.n+xDiff*xDiff/(f.sumX2-f.n*f.meanX*f.meanX))
}

func (e *Engine) project(fit *linearFit, series analytics.MetricSeries, spec analytics.MetricSpec, now time.Time) *ForecastResult {
	errorCap := spec.ErrorCap(fit.meanY)
	maxRealistic := spec.MaxRealistic(fit.meanY)

	steps := e.steps()
	predictions := make([]ForecastPoint, len(steps))
	dampened := 0

	for i, h := range steps {
		predTime := now.Add(time.Duration(h * float64(time.Hour)))
		x := fit.lastX + predTime.Sub(fit.lastT).Hours()

		value := fit.intercept + fit.slope*x
		if math.Abs(fit.slope)*h > e.cfg.DampingRangeFactor*fit.rangeY {
			value = fit.lastY + fit.slope*h*e.cfg.DampingFactor
			dampened++
		}

		margin := math.Min(e.cfg.Z*fit.predStdError(x), errorCap)

		predictions[i] = ForecastPoint{
			Time:       predTime,
			Value:      analytics.Round(clamp(value, 0, maxRealistic), 2),
			UpperBound: analytics.Round(clamp(value+margin, 0, maxRealistic), 2),
			LowerBound: analytics.Round(clamp(value-margin, 0, maxRealistic), 2),
		}
	}

	ys := series.Values()
	return &ForecastResult{
		Metric:      spec.Metric,
		Predictions: predictions,
		ModelInfo: ModelInfo{
			Method:        MethodLinear,
			Slope:         analytics.Round(fit.slope, 4),
			Intercept:     analytics.Round(fit.intercept, 4),
			StdError:      analytics.Round(fit.stdError, 4),
			MAE:           analytics.Round(CalculateMAE(ys, fit.fitted), 4),
			RMSE:          analytics.Round(CalculateRMSE(ys, fit.fitted), 4),
			DataPoints:    series.Len(),
			DampenedSteps: dampened,
		},
	}
}
