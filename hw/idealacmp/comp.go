// Package idealacmp provides an ideal analog comparator model. Each channel
// compares a programmable voltage source against a reference at a fixed
// sampling frequency, with no jitter and no hysteresis.
package idealacmp

import (
	"log"
	"reflect"

	"github.com/esyslab/tsukuba/hw/acmp"
	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/sim"
)

type sampleEvent struct {
	*sim.EventBase

	channel    *acmpChannel
	generation uint64
}

func newSampleEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	channel *acmpChannel,
	generation uint64,
) *sampleEvent {
	return &sampleEvent{sim.NewEventBase(t, handler), channel, generation}
}

// An acmpChannel is one channel of the simulated comparator. The generation
// counter invalidates the sample chain of an earlier arming, so that
// stop-then-start does not leave two chains running.
type acmpChannel struct {
	comp  *Comp
	index int
	name  string

	source    Source
	reference float64

	armed      bool
	generation uint64
	lastOutput bool
}

func (c *acmpChannel) Name() string {
	return c.name
}

var _ acmp.Comparator = (*Comp)(nil)

// A Comp is an ideal analog comparator. While a channel is armed, the
// comparator samples it once per cycle and fires the registered client on a
// rising edge of the comparison output.
type Comp struct {
	*sim.ComponentBase

	engine sim.Engine
	freq   sim.Freq

	channels []*acmpChannel
	client   acmp.Client
}

// Channels returns the channels of the comparator, in index order.
func (c *Comp) Channels() []acmp.Channel {
	channels := make([]acmp.Channel, len(c.channels))
	for i, ch := range c.channels {
		channels[i] = ch
	}

	return channels
}

// SetClient registers the recipient of comparison events.
func (c *Comp) SetClient(client acmp.Client) {
	c.client = client
}

// Comparison samples the channel now.
func (c *Comp) Comparison(ch acmp.Channel) bool {
	channel := c.ownedChannel(ch)
	return c.output(channel, c.engine.CurrentTime())
}

// StartComparing arms periodic sampling on the channel. The client fires on
// the first false-to-true transition after arming; an input that is already
// above the reference does not fire until it falls and rises again. Arming an
// armed channel reports ALREADY.
func (c *Comp) StartComparing(ch acmp.Channel) error {
	channel := c.ownedChannel(ch)

	if channel.armed {
		return kernel.ErrAlready
	}

	now := c.engine.CurrentTime()
	channel.armed = true
	channel.generation++
	channel.lastOutput = c.output(channel, now)

	evt := newSampleEvent(c.freq.NextTick(now), c, channel, channel.generation)
	c.engine.Schedule(evt)

	return nil
}

// StopComparing disarms the channel. Stopping an idle channel succeeds, as
// the hardware reports OK either way.
func (c *Comp) StopComparing(ch acmp.Channel) error {
	channel := c.ownedChannel(ch)

	if !channel.armed {
		return nil
	}

	channel.armed = false
	channel.generation++

	return nil
}

func (c *Comp) ownedChannel(ch acmp.Channel) *acmpChannel {
	channel, ok := ch.(*acmpChannel)
	if !ok || channel.comp != c {
		log.Panicf("channel %s does not belong to %s", ch.Name(), c.Name())
	}

	return channel
}

func (c *Comp) output(channel *acmpChannel, t sim.VTimeInSec) bool {
	return channel.source.Level(t) > channel.reference
}

// Handle defines how the comparator handles events.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *sampleEvent:
		return c.handleSampleEvent(e)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) handleSampleEvent(e *sampleEvent) error {
	channel := e.channel
	if !channel.armed || e.generation != channel.generation {
		return nil
	}

	now := e.Time()
	output := c.output(channel, now)
	if output && !channel.lastOutput && c.client != nil {
		c.client.Fired(channel.index)
	}
	channel.lastOutput = output

	evt := newSampleEvent(c.freq.NextTick(now), c, channel, e.generation)
	c.engine.Schedule(evt)

	return nil
}
