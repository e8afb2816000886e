package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateDays returns n consecutive calendar days starting at start
func GenerateDays(start time.Time, n int) TimeSlice {
	t := make(TimeSlice, 0, n)
	ct := truncate(start)
	for i := 0; i < n; i++ {
		t = append(t, ct.AddDate(0, 0, i))
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

// Clip raises every value below lower up to lower
func (s Series) Clip(lower float64) Series {
	for i := range s {
		s[i] = math.Max(s[i], lower)
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Series(y)
}

// GenerateTrendY returns a linear ramp starting at intercept, increasing by slope per point
func GenerateTrendY(n int, intercept, slope float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, intercept+slope*float64(i))
	}
	return Series(y)
}

// GenerateWaveY returns a sinusoid over the day of year with the given amplitude
func GenerateWaveY(t []time.Time, amp, periodDays, offsetDays float64) Series {
	n := len(t)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		day := float64(t[i].YearDay())
		y = append(y, amp*math.Sin(2.0*math.Pi*(day+offsetDays)/periodDays))
	}
	return Series(y)
}

// GenerateNoise returns normally distributed noise scaled by noiseScale
func GenerateNoise(rng *rand.Rand, n int, noiseScale float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, rng.NormFloat64()*noiseScale)
	}
	return Series(y)
}
