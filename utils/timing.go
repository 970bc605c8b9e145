package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics and log lines are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for different operations
type TimingStats struct {
	TotalTime        time.Duration
	DataLoadingTime  time.Duration
	ModelInitTime    time.Duration
	TrainStepTime    time.Duration // forward and backward pass of each instance
	EvaluateTime     time.Duration // forward pass only
	MergeTime        time.Duration
	UpdateTime       time.Duration
	Instances        int
	Batches          int
}

// Add accumulates other into s.
func (s *TimingStats) Add(other TimingStats) {
	s.TotalTime += other.TotalTime
	s.DataLoadingTime += other.DataLoadingTime
	s.ModelInitTime += other.ModelInitTime
	s.TrainStepTime += other.TrainStepTime
	s.EvaluateTime += other.EvaluateTime
	s.MergeTime += other.MergeTime
	s.UpdateTime += other.UpdateTime
	s.Instances += other.Instances
	s.Batches += other.Batches
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, steps int) {
	if !Verbose || steps <= 0 || stats.TotalTime <= 0 {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Average time per step: %v\n", stats.TotalTime/time.Duration(steps))
	fmt.Fprintf(Output, "Steps completed: %d (%d instances)\n", steps, stats.Instances)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, percent(stats.DataLoadingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, percent(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Train steps: %v (%.1f%% summed over workers)\n", stats.TrainStepTime, percent(stats.TrainStepTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Evaluation: %v (%.1f%%)\n", stats.EvaluateTime, percent(stats.EvaluateTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Update merge: %v (%.1f%%)\n", stats.MergeTime, percent(stats.MergeTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Weight updates: %v (%.1f%%)\n", stats.UpdateTime, percent(stats.UpdateTime, stats.TotalTime))
}

func percent(part, total time.Duration) float64 {
	return float64(part) / float64(total) * 100
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
