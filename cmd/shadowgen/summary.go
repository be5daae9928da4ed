package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"shadowgen/internal/driver"
)

// writeSummary prints one aligned row per job.
func writeSummary(out io.Writer, results []*driver.Result) {
	width := 0
	for _, r := range results {
		width = max(width, runewidth.StringWidth(r.Job.Name))
	}
	ok := color.New(color.FgGreen, color.Bold)
	failed := color.New(color.FgRed, color.Bold)
	for _, r := range results {
		name := runewidth.FillRight(r.Job.Name, width)
		if r.OK() {
			detail := strconv.Itoa(len(r.Weave.Selected)) + " types"
			if n := len(r.Weave.Enums); n > 0 {
				detail += ", " + strconv.Itoa(n) + " enums"
			}
			fmt.Fprintf(out, "%s  %s  %s -> %s\n", ok.Sprint("ok  "), name, detail, r.Job.Output)
			continue
		}
		fmt.Fprintf(out, "%s  %s  %v\n", failed.Sprint("fail"), name, r.Err)
	}
}
