// Harvest yields: crops grow better or worse from day to day following a
// smooth noise field, so a good week and a bad week move crop prices.
package engine

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/harvest-market/internal/commodity"
)

// Harvest produces a per-crop yield multiplier for each market day.
type Harvest struct {
	noise     opensimplex.Noise
	Amplitude float64 // Largest deviation from a normal yield of 1
	Frequency float64 // Noise steps per day
}

// NewHarvest creates a yield field. amplitude 0 disables variation.
func NewHarvest(seed int64, amplitude float64) *Harvest {
	return &Harvest{
		noise:     opensimplex.New(seed),
		Amplitude: amplitude,
		Frequency: 0.15,
	}
}

// Yield returns the multiplier for k on the given day. Seeds are bought from
// merchants, not grown, and always yield 1.
func (h *Harvest) Yield(k commodity.Kind, day uint64) float64 {
	if h == nil || h.Amplitude == 0 || k.IsSeed() {
		return 1
	}
	n := octaveNoise(h.noise, float64(k)*3.7, float64(day), 3, h.Frequency, 0.5)
	return max(1+h.Amplitude*n, 0)
}

// octaveNoise layers several frequencies of noise; the result is in [-1, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
