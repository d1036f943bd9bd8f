package simulation

import (
	"github.com/rs/xid"

	"github.com/esyslab/tsukuba/datarecording"
	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/monitoring"
	"github.com/esyslab/tsukuba/sim"
	"github.com/esyslab/tsukuba/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	outputFileName string

	upcallQueueCapacity int

	clickhouseAddr     string
	clickhouseDatabase string
	clickhouseUsername string
	clickhousePassword string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:           true,
		upcallQueueCapacity: 8,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithUpcallQueueCapacity sets how many upcalls each process of the kernel
// can have pending.
func (b Builder) WithUpcallQueueCapacity(c int) Builder {
	b.upcallQueueCapacity = c
	return b
}

// WithClickHouseBackend stores the simulation results in a ClickHouse
// database instead of a local SQLite file. addr is given as "host:port"
// using the native protocol port.
func (b Builder) WithClickHouseBackend(
	addr, database, username, password string,
) Builder {
	b.clickhouseAddr = addr
	b.clickhouseDatabase = database
	b.clickhouseUsername = username
	b.clickhousePassword = password
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.clickhouseAddr != "" && b.outputFileName != "" {
		panic("output file name cannot be set when ClickHouse is used")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		compNameIndex: make(map[string]int),
	}

	s.id = xid.New().String()

	s.dataRecorder = b.createDataRecorder(s.id)

	s.engine = sim.NewSerialEngine()
	s.kernel = kernel.MakeBuilder().
		WithEngine(s.engine).
		WithUpcallQueueCapacity(b.upcallQueueCapacity).
		Build("Kernel")

	s.visTracer = tracing.NewDBTracer(s.engine, s.dataRecorder)
	tracing.CollectTrace(s.kernel, s.visTracer)

	// The monitor is not up yet, so this records the kernel in the
	// simulation's own component table only.
	s.RegisterComponent(s.kernel)

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterEngine(s.engine)
		s.monitor.RegisterKernel(s.kernel)
		tracing.CollectTrace(s.kernel, s.monitor.LiveTracer())

		s.monitor.StartServer()
	}

	return s
}

func (b Builder) createDataRecorder(id string) datarecording.DataRecorder {
	if b.clickhouseAddr != "" {
		return datarecording.NewClickHouseRecorder(
			b.clickhouseAddr,
			b.clickhouseDatabase,
			b.clickhouseUsername,
			b.clickhousePassword,
		)
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "tsukuba_sim_" + id
	}

	return datarecording.NewDataRecorder(outputPath)
}
