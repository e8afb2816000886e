package dataset

import (
	"math/rand/v2"
	"time"

	"github.com/aouyang1/go-salinity/timedataset"
)

// SimulationOptions describes a synthetic multi-province daily table
type SimulationOptions struct {
	Start     time.Time
	Days      int
	Provinces []string
	Seed      uint64

	// BaseSalinity is the first day salinity of the first province, later provinces are offset
	// by ProvinceOffset each
	BaseSalinity   float64
	ProvinceOffset float64

	// SalinitySlope is the daily salinity increase
	SalinitySlope float64
	NoiseScale    float64
}

// NewDefaultSimulationOptions returns 200 days of mildly increasing salinity for five provinces
func NewDefaultSimulationOptions() *SimulationOptions {
	return &SimulationOptions{
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:           200,
		Provinces:      []string{"Ben Tre", "Ca Mau", "Kien Giang", "Soc Trang", "Tra Vinh"},
		Seed:           42,
		BaseSalinity:   2.0,
		ProvinceOffset: 0.5,
		SalinitySlope:  0.01,
		NoiseScale:     0.05,
	}
}

// Simulate generates a complete daily table sorted by province then date
func Simulate(opt *SimulationOptions) Daily {
	if opt == nil {
		opt = NewDefaultSimulationOptions()
	}
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed+1))
	t := timedataset.GenerateDays(opt.Start, opt.Days)

	var d Daily
	for p, prov := range opt.Provinces {
		sal := timedataset.GenerateTrendY(opt.Days, opt.BaseSalinity+opt.ProvinceOffset*float64(p), opt.SalinitySlope).
			Add(timedataset.GenerateWaveY(t, 0.3, 365, float64(10*p))).
			Add(timedataset.GenerateNoise(rng, opt.Days, opt.NoiseScale)).
			Clip(0)
		rain := timedataset.GenerateConstY(opt.Days, 4).
			Add(timedataset.GenerateWaveY(t, 4, 365, 180)).
			Add(timedataset.GenerateNoise(rng, opt.Days, 3)).
			Clip(0)
		temp := timedataset.GenerateConstY(opt.Days, 28).
			Add(timedataset.GenerateWaveY(t, 2, 365, 90)).
			Add(timedataset.GenerateNoise(rng, opt.Days, 0.8))

		for i, day := range t {
			d = append(d, Observation{
				Date:     day,
				Province: prov,
				Salinity: sal[i],
				Rain:     rain[i],
				Temp:     temp[i],
			})
		}
	}
	d.Sort()
	return d
}
