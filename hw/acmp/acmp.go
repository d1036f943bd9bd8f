// Package acmp defines the hardware contract for analog comparator
// peripherals. A comparator continuously compares an analog input against a
// reference and reports whether the input is above it. Implementations are
// simulation models; drivers program against these interfaces only.
package acmp

// A Channel is an opaque handle to one comparator channel, that is, one
// pairing of an analog input with a reference. Channels are created and owned
// by the Comparator implementation.
type Channel interface {
	Name() string
}

// A Comparator is the analog comparator peripheral.
//
// Errors carry hardware-reported status and are propagated verbatim to the
// caller. Passing a Channel that does not belong to the implementation is a
// programming error and panics.
type Comparator interface {
	// Comparison samples the channel now and reports whether the input is
	// above the reference.
	Comparison(ch Channel) bool

	// StartComparing arms the channel so that a rising edge of the
	// comparison output notifies the registered client.
	StartComparing(ch Channel) error

	// StopComparing disarms the channel. Stopping an idle channel is not an
	// error.
	StopComparing(ch Channel) error

	// SetClient registers the recipient of comparison events.
	SetClient(c Client)
}

// A Client receives comparison events from a Comparator. There is one client
// per comparator; it is notified with the index of the channel that fired.
type Client interface {
	Fired(channelIndex int)
}
