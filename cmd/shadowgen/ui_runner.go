package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"shadowgen/internal/driver"
	"shadowgen/internal/pipeline"
	"shadowgen/internal/ui"
)

type batchOutcome struct {
	results []*driver.Result
	err     error
}

// runBatchWithUI runs jobs while a Bubble Tea program renders progress.
func runBatchWithUI(ctx context.Context, title string, jobs []driver.Job, opts driver.BatchOptions) ([]*driver.Result, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		opts.Sink = pipeline.ChannelSink{Ch: events}
		results, err := driver.RunBatch(ctx, jobs, opts)
		outcomeCh <- batchOutcome{results: results, err: err}
		close(events)
	}()

	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name
	}
	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// Drain so the batch never blocks on a program that quit early.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
