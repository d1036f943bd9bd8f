package idealacmp

import (
	"github.com/esyslab/tsukuba/sim"
)

type channelSource struct {
	index  int
	source Source
}

// A Builder can build ideal analog comparators.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	numChannels int
	source      Source
	sources     []channelSource
	reference   float64
}

// MakeBuilder creates a builder with default parameters: 1MHz sampling, two
// channels, a constant 0V source on every channel, and a 1V reference.
func MakeBuilder() Builder {
	return Builder{
		freq:        1 * sim.MHz,
		numChannels: 2,
		source:      Constant(0),
		reference:   1.0,
	}
}

// WithEngine sets the engine that the comparator uses to schedule sample
// events.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the sampling frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNumChannels sets the number of channels.
func (b Builder) WithNumChannels(n int) Builder {
	b.numChannels = n
	return b
}

// WithSource sets the voltage source of every channel.
func (b Builder) WithSource(s Source) Builder {
	b.source = s
	return b
}

// WithChannelSource sets the voltage source of one channel, overriding
// WithSource.
func (b Builder) WithChannelSource(index int, s Source) Builder {
	b.sources = append(b.sources, channelSource{index: index, source: s})
	return b
}

// WithReference sets the reference voltage that every channel compares
// against.
func (b Builder) WithReference(v float64) Builder {
	b.reference = v
	return b
}

// Build creates the comparator.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("idealacmp requires an engine")
	}

	if b.freq <= 0 {
		panic("sampling frequency must be positive")
	}

	if b.numChannels <= 0 {
		panic("number of channels must be positive")
	}

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		freq:          b.freq,
	}

	for i := 0; i < b.numChannels; i++ {
		c.channels = append(c.channels, &acmpChannel{
			comp:      c,
			index:     i,
			name:      sim.BuildNameWithIndex(name, "Channel", i),
			source:    b.source,
			reference: b.reference,
		})
	}

	for _, cs := range b.sources {
		if cs.index < 0 || cs.index >= b.numChannels {
			panic("channel source index out of range")
		}

		c.channels[cs.index].source = cs.source
	}

	return c
}
