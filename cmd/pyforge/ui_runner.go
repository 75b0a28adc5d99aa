package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pyforge/internal/compile"
	"pyforge/internal/packaging"
	"pyforge/internal/ui"
)

type packOutcome struct {
	embedded *packaging.Embedded
	err      error
}

// runPackageWithUI drives Package in a goroutine while a Bubble Tea
// program consumes its progress events. The packaging error wins over a
// UI rendering error.
func runPackageWithUI(ctx context.Context, title string, p *packaging.PrePackaged, compiler compile.Compiler) (*packaging.Embedded, error) {
	if p == nil {
		return nil, fmt.Errorf("missing packaging aggregate")
	}
	events := make(chan packaging.Event, 256)
	outcomeCh := make(chan packOutcome, 1)

	go func() {
		req := &packaging.PackageRequest{
			Compiler: compiler,
			Progress: packaging.ChannelSink{Ch: events},
		}
		embedded, err := p.Package(ctx, req)
		outcomeCh <- packOutcome{embedded: embedded, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, p.Names(), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if outcome.err != nil {
		return outcome.embedded, outcome.err
	}
	return outcome.embedded, uiErr
}
