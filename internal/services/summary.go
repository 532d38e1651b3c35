package services

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// PrintBuildSummary writes a short report of a build to w.
func PrintBuildSummary(w io.Writer, result *BuildResult) error {
	heading, status := color.New(color.FgGreen, color.Bold), "complete"
	if !result.Success() {
		heading, status = color.New(color.FgRed, color.Bold), "finished with errors"
	}
	_, _ = heading.Fprintf(w, "\nBuild %s\n\n", status)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Routes\t%s\n", color.WhiteString(humanize.Comma(int64(result.Routes))))
	fmt.Fprintf(tw, "Written\t%s\n", color.GreenString(humanize.Comma(int64(result.Written))))
	fmt.Fprintf(tw, "Size\t%s\n", color.WhiteString(humanize.Bytes(uint64(result.Bytes))))
	fmt.Fprintf(tw, "Duration\t%s\n", color.YellowString(result.Duration.Truncate(time.Millisecond).String()))
	if result.OutDir != "" {
		fmt.Fprintf(tw, "Output\t%s\n", result.OutDir)
	}
	if len(result.Failures) > 0 {
		fmt.Fprintf(tw, "Failed\t%s\n", color.RedString(humanize.Comma(int64(len(result.Failures)))))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, item := range result.Failures {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("✗"), item.Error())
	}
	return nil
}

// ProgressPrinter returns a progress callback printing every step to w.
// Updates are rewritten in place on one line.
func ProgressPrinter(w io.Writer) func(done, total int) {
	var mu sync.Mutex
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\rRendering %s/%s routes", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
		if done == total {
			fmt.Fprintln(w)
		}
	}
}
