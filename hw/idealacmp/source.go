package idealacmp

import (
	"math"

	"github.com/esyslab/tsukuba/sim"
)

// A Source produces the voltage on one analog input as a function of virtual
// time.
type Source interface {
	Level(t sim.VTimeInSec) float64
}

type constantSource struct {
	level float64
}

func (s constantSource) Level(_ sim.VTimeInSec) float64 {
	return s.level
}

// Constant returns a source that holds one level forever.
func Constant(level float64) Source {
	return constantSource{level: level}
}

type stepSource struct {
	period sim.VTimeInSec
	levels []float64
}

func (s stepSource) Level(t sim.VTimeInSec) float64 {
	i := int(t/s.period) % len(s.levels)
	return s.levels[i]
}

// Steps returns a source that cycles through the given levels, holding each
// one for period.
func Steps(period sim.VTimeInSec, levels ...float64) Source {
	if period <= 0 {
		panic("step period must be positive")
	}

	if len(levels) == 0 {
		panic("step source requires at least one level")
	}

	return stepSource{period: period, levels: levels}
}

type sineSource struct {
	offset    float64
	amplitude float64
	freq      sim.Freq
}

func (s sineSource) Level(t sim.VTimeInSec) float64 {
	return s.offset +
		s.amplitude*math.Sin(2*math.Pi*float64(s.freq)*float64(t))
}

// Sine returns a source that oscillates around offset with the given
// amplitude and frequency.
func Sine(offset, amplitude float64, freq sim.Freq) Source {
	if freq <= 0 {
		panic("sine frequency must be positive")
	}

	return sineSource{offset: offset, amplitude: amplitude, freq: freq}
}
