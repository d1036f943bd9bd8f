package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/esyslab/tsukuba/tracing"
)

var traceCmd = &cobra.Command{
	Use:   "trace [file.sqlite3]",
	Short: "Summarize a recorded trace database.",
	Long: `trace reads the SQLite database written by a simulation run and ` +
		`prints how many tasks of each kind ran at every location.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		summarizeTrace(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().String("kind", "",
		"Only count tasks of this kind")
	traceCmd.Flags().Float64("start", 0,
		"Start of the time range, in seconds")
	traceCmd.Flags().Float64("end", 0,
		"End of the time range, in seconds")
}

func summarizeTrace(cmd *cobra.Command, filename string) {
	reader := tracing.NewDataRecorderTraceReader(filename)

	kind, _ := cmd.Flags().GetString("kind")
	start, _ := cmd.Flags().GetFloat64("start")
	end, _ := cmd.Flags().GetFloat64("end")

	components := reader.ListComponents()
	sort.Strings(components)

	total := 0
	fmt.Printf("%-30s%-12s%-24s%s\n", "Location", "Kind", "What", "Count")
	for _, component := range components {
		query := tracing.TaskQuery{
			Location: component,
			Kind:     kind,
		}
		if end > 0 {
			query.EnableTimeRange = true
			query.StartTime = start
			query.EndTime = end
		}

		tasks := reader.ListTasks(query)
		total += len(tasks)

		printComponentSummary(component, tasks)
	}

	fmt.Printf("\n%d tasks in total\n", total)
}

func printComponentSummary(component string, tasks []tracing.Task) {
	type taskClass struct {
		kind, what string
	}

	counts := map[taskClass]int{}
	classes := []taskClass{}
	for _, t := range tasks {
		class := taskClass{kind: t.Kind, what: t.What}
		if _, ok := counts[class]; !ok {
			classes = append(classes, class)
		}

		counts[class]++
	}

	sort.Slice(classes, func(i, j int) bool {
		if classes[i].kind != classes[j].kind {
			return classes[i].kind < classes[j].kind
		}

		return classes[i].what < classes[j].what
	})

	for _, class := range classes {
		fmt.Printf("%-30s%-12s%-24s%d\n",
			component, class.kind, class.what, counts[class])
	}
}
