package comparator

import (
	"github.com/esyslab/tsukuba/hw/acmp"
	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/sim"
)

// A Builder can build comparator drivers.
type Builder struct {
	kernel    *kernel.Kernel
	hw        acmp.Comparator
	channels  []acmp.Channel
	driverNum kernel.DriverNum
}

// MakeBuilder creates a builder with the default driver number.
func MakeBuilder() Builder {
	return Builder{
		driverNum: DefaultDriverNum,
	}
}

// WithKernel sets the kernel the driver registers with.
func (b Builder) WithKernel(k *kernel.Kernel) Builder {
	b.kernel = k
	return b
}

// WithHardware sets the comparator peripheral.
func (b Builder) WithHardware(hw acmp.Comparator) Builder {
	b.hw = hw
	return b
}

// WithChannels sets the channels exposed to processes, in syscall index
// order.
func (b Builder) WithChannels(channels []acmp.Channel) Builder {
	b.channels = channels
	return b
}

// WithDriverNum overrides the driver number.
func (b Builder) WithDriverNum(num kernel.DriverNum) Builder {
	b.driverNum = num
	return b
}

// Build creates the driver, registers it with the kernel at the configured
// driver number, and installs it as the hardware client and as a process
// watcher.
func (b Builder) Build(name string) *Driver {
	sim.NameMustBeValid(name)

	if b.kernel == nil {
		panic("comparator driver requires a kernel")
	}

	if b.hw == nil {
		panic("comparator driver requires the comparator hardware")
	}

	if len(b.channels) == 0 {
		panic("comparator driver requires at least one channel")
	}

	d := &Driver{
		name:     name,
		kernel:   b.kernel,
		hw:       b.hw,
		channels: b.channels,
		grant:    kernel.NewGrant[appState](b.kernel),
	}

	b.kernel.RegisterDriver(b.driverNum, d)
	b.kernel.AddProcessWatcher(d)
	b.hw.SetClient(d)

	return d
}
