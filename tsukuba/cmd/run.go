package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/esyslab/tsukuba/drivers/comparator"
	"github.com/esyslab/tsukuba/hw/idealacmp"
	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/sim"
	"github.com/esyslab/tsukuba/simulation"
	"github.com/esyslab/tsukuba/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a demo simulation of two processes sharing a comparator.",
	Long: `run simulates a kernel with an analog comparator driver and two ` +
		`processes that contend for it. The first process arms channel 0 and ` +
		`receives comparison events until it exits; the second process is ` +
		`rejected with BUSY while the first one holds the driver, and takes ` +
		`over afterwards.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runScenario(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("channels", 2,
		"Number of comparator channels")
	runCmd.Flags().Bool("no-monitor", false,
		"Disable the monitoring server")
	runCmd.Flags().Int("monitor-port", 0,
		"Port of the monitoring server")
	runCmd.Flags().Bool("open", false,
		"Open the monitoring dashboard in a browser")
	runCmd.Flags().String("output", "",
		"Name of the database file that records the run")
	runCmd.Flags().String("trace-csv", "",
		"Also write the task trace into a CSV file")
	runCmd.Flags().Bool("trace-mysql", false,
		"Also write the task trace into a MySQL database")
	runCmd.Flags().String("clickhouse", "",
		"Record the run in a ClickHouse server (host:port) instead of SQLite")
	runCmd.Flags().Bool("verbose", false,
		"Log every syscall and upcall")
}

// scenarioStats counts what the two scripted processes observe.
type scenarioStats struct {
	aliceFired int
	bobFired   int
	bobRetries int
}

func runScenario(cmd *cobra.Command) {
	numChannels, _ := cmd.Flags().GetInt("channels")
	if numChannels < 2 {
		log.Fatal("the demo scenario needs at least 2 channels")
	}

	s := buildSimulation(cmd)
	defer s.Terminate()

	engine := s.GetEngine()
	k := s.GetKernel()

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger := log.New(os.Stdout, "", 0)
		engine.AcceptHook(sim.NewEventLogger(logger))
		k.AcceptHook(kernel.NewSyscallLogger(logger, engine))
	}

	comp := buildComparator(engine, numChannels)
	s.RegisterComponent(comp)

	comparator.MakeBuilder().
		WithKernel(k).
		WithHardware(comp).
		WithChannels(comp.Channels()).
		Build("ACMPDriver")

	attachTraceWriters(cmd, engine, k)
	syscallCounter, upcallCounter := attachCounters(engine, k)

	stats := scheduleProcesses(engine, k)
	trackProgress(s, engine)

	openDashboard(cmd, s)

	err := engine.Run()
	if err != nil {
		panic(err)
	}

	printSummary(engine, stats, syscallCounter, upcallCounter)
}

func buildSimulation(cmd *cobra.Command) *simulation.Simulation {
	builder := simulation.MakeBuilder()

	if noMonitor, _ := cmd.Flags().GetBool("no-monitor"); noMonitor {
		builder = builder.WithoutMonitoring()
	}

	if port, _ := cmd.Flags().GetInt("monitor-port"); port != 0 {
		builder = builder.WithMonitorPort(port)
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		builder = builder.WithOutputFileName(output)
	}

	if addr, _ := cmd.Flags().GetString("clickhouse"); addr != "" {
		builder = builder.WithClickHouseBackend(
			addr,
			os.Getenv("TSUKUBA_CLICKHOUSE_DATABASE"),
			os.Getenv("TSUKUBA_CLICKHOUSE_USERNAME"),
			os.Getenv("TSUKUBA_CLICKHOUSE_PASSWORD"),
		)
	}

	return builder.Build()
}

// buildComparator creates the comparator peripheral. Channel 0 carries a 2V
// square wave that crosses the 1V reference every 2.5us. The remaining
// channels carry sine waves that cross the reference every 10us.
func buildComparator(engine sim.Engine, numChannels int) *idealacmp.Comp {
	builder := idealacmp.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.MHz).
		WithNumChannels(numChannels).
		WithChannelSource(0, idealacmp.Steps(2.5e-6, 0, 2))

	for i := 1; i < numChannels; i++ {
		builder = builder.WithChannelSource(i,
			idealacmp.Sine(1.0, 0.8, 50*sim.KHz))
	}

	return builder.Build("ACMP")
}

func attachTraceWriters(
	cmd *cobra.Command,
	engine sim.Engine,
	k *kernel.Kernel,
) {
	if path, _ := cmd.Flags().GetString("trace-csv"); path != "" {
		tracer := tracing.NewWriterTracer(
			engine, tracing.NewCSVTraceWriter(path))
		tracing.CollectTrace(k, tracer)
	}

	if useMySQL, _ := cmd.Flags().GetBool("trace-mysql"); useMySQL {
		tracer := tracing.NewWriterTracer(
			engine, tracing.NewMySQLTraceWriter())
		tracing.CollectTrace(k, tracer)
	}
}

func attachCounters(
	engine sim.Engine,
	k *kernel.Kernel,
) (syscalls, upcalls *tracing.AverageTimeTracer) {
	syscalls = tracing.NewAverageTimeTracer(engine,
		func(t tracing.Task) bool { return t.Kind == "syscall" })
	tracing.CollectTrace(k, syscalls)

	upcalls = tracing.NewAverageTimeTracer(engine,
		func(t tracing.Task) bool { return t.Kind == "upcall" })
	tracing.CollectTrace(k, upcalls)

	return syscalls, upcalls
}

// scheduleProcesses scripts the two processes. Alice claims the driver at
// time zero and keeps reclaiming it from her upcall handler, as every
// delivered event releases the driver again. Bob collides with her at 1us,
// takes over at 21us, and ends the run after his first event.
func scheduleProcesses(engine sim.Engine, k *kernel.Kernel) *scenarioStats {
	stats := &scenarioStats{}

	alice := k.CreateProcess("Alice")
	bob := k.CreateProcess("Bob")

	aliceScript := kernel.NewScript("AliceScript", engine)
	bobScript := kernel.NewScript("BobScript", engine)

	aliceScript.At(0, func() {
		result := k.Command(comparator.DefaultDriverNum,
			comparator.CmdChannelCount, 0, alice.PID())
		fmt.Printf("Alice sees %d comparator channels\n",
			result.ReturnValue())

		_, err := k.Subscribe(comparator.DefaultDriverNum,
			comparator.SubscribeFired,
			func(ch, _, _ uint32) {
				stats.aliceFired++

				// The delivered event released the driver. Reclaim it with a
				// comparison command so that the next event reaches Alice too.
				k.Command(comparator.DefaultDriverNum,
					comparator.CmdComparison, ch, alice.PID())
			},
			alice.PID())
		if err != nil {
			panic(err)
		}

		k.Command(comparator.DefaultDriverNum,
			comparator.CmdStartComparing, 0, alice.PID())
	})

	aliceScript.At(20.2e-6, func() {
		k.Command(comparator.DefaultDriverNum,
			comparator.CmdStopComparing, 0, alice.PID())
		k.TerminateProcess(alice.PID())
		fmt.Printf("Alice exits after %d events\n", stats.aliceFired)
	})

	bobScript.At(1e-6, func() {
		result := k.Command(comparator.DefaultDriverNum,
			comparator.CmdStartComparing, 1, bob.PID())
		if !result.IsSuccess() {
			stats.bobRetries++
			fmt.Printf("Bob is rejected with %s\n", result.Code())
		}
	})

	bobScript.At(21e-6, func() {
		_, err := k.Subscribe(comparator.DefaultDriverNum,
			comparator.SubscribeFired,
			func(ch, _, _ uint32) {
				stats.bobFired++

				k.Command(comparator.DefaultDriverNum,
					comparator.CmdStopComparing, ch, bob.PID())
				k.TerminateProcess(bob.PID())
			},
			bob.PID())
		if err != nil {
			panic(err)
		}

		k.Command(comparator.DefaultDriverNum,
			comparator.CmdStartComparing, 1, bob.PID())
	})

	return stats
}

// trackProgress feeds the monitor a progress bar that advances once per
// simulated microsecond.
func trackProgress(s *simulation.Simulation, engine sim.Engine) {
	monitor := s.GetMonitor()
	if monitor == nil {
		return
	}

	const totalMicroseconds = 45

	bar := monitor.CreateProgressBar("Virtual time (us)", totalMicroseconds)

	ticker := kernel.NewScript("ProgressScript", engine)
	for i := 1; i <= totalMicroseconds; i++ {
		ticker.At(sim.VTimeInSec(float64(i)*1e-6), func() {
			bar.IncrementFinished(1)
		})
	}
}

func openDashboard(cmd *cobra.Command, s *simulation.Simulation) {
	open, _ := cmd.Flags().GetBool("open")
	if !open {
		return
	}

	monitor := s.GetMonitor()
	if monitor == nil {
		log.Fatal("cannot open the dashboard with monitoring disabled")
	}

	url := fmt.Sprintf("http://localhost:%d", monitor.Port())
	err := browser.OpenURL(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %s\n", url, err)
	}
}

func printSummary(
	engine sim.Engine,
	stats *scenarioStats,
	syscalls, upcalls *tracing.AverageTimeTracer,
) {
	fmt.Printf("\nSimulated %.1f us of virtual time\n",
		float64(engine.CurrentTime())*1e6)
	fmt.Printf("Alice received %d events, Bob received %d after %d rejected "+
		"attempts\n",
		stats.aliceFired, stats.bobFired, stats.bobRetries)
	fmt.Printf("The kernel dispatched %d syscalls and delivered %d upcalls\n",
		syscalls.TotalCount(), upcalls.TotalCount())
}
