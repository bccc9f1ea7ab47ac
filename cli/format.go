package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/petal-labs/cuke/runner"
)

var (
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	skipStyle     = lipgloss.NewStyle().Faint(true)
	scenarioStyle = lipgloss.NewStyle().Bold(true)
	locStyle      = lipgloss.NewStyle().Faint(true)
)

// formatter renders runner events as they arrive.
type formatter interface {
	Handle(e runner.Event)
}

// newFormatter selects an event formatter by name.
func newFormatter(name string, w io.Writer) (formatter, error) {
	switch name {
	case "pretty", "":
		return &prettyFormatter{w: w}, nil
	case "json":
		return &jsonFormatter{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want pretty or json)", name)
	}
}

// prettyFormatter prints a colored, human-readable step trace.
type prettyFormatter struct {
	mu sync.Mutex
	w  io.Writer
}

func (f *prettyFormatter) Handle(e runner.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch e.Kind {
	case runner.EventScenarioStarted:
		fmt.Fprintf(f.w, "%s %s\n",
			scenarioStyle.Render("Scenario: "+e.ScenarioName),
			locStyle.Render(e.URI))
	case runner.EventStepFinished:
		fmt.Fprintf(f.w, "  %s %s\n", passStyle.Render("✓"), f.stepLabel(e))
	case runner.EventStepFailed:
		fmt.Fprintf(f.w, "  %s %s\n", failStyle.Render("✗"), f.stepLabel(e))
		if msg, ok := e.Payload["error"].(string); ok {
			fmt.Fprintf(f.w, "    %s\n", failStyle.Render(msg))
		}
	case runner.EventStepSkipped:
		fmt.Fprintf(f.w, "  %s %s\n", skipStyle.Render("-"), skipStyle.Render(f.stepLabel(e)))
	case runner.EventScenarioFinished:
		fmt.Fprintln(f.w)
	}
}

func (f *prettyFormatter) stepLabel(e runner.Event) string {
	if e.Phase != "" {
		return "[" + e.Phase.String() + " hook]"
	}
	return e.StepText
}

// jsonFormatter prints one JSON object per event line, for machine
// consumption.
type jsonFormatter struct {
	mu sync.Mutex
	w  io.Writer
}

func (f *jsonFormatter) Handle(e runner.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	enc, err := json.Marshal(map[string]any{
		"kind":     e.Kind,
		"run_id":   e.RunID,
		"scenario": e.ScenarioName,
		"uri":      e.URI,
		"step":     e.StepText,
		"phase":    e.Phase,
		"seq":      e.Seq,
		"elapsed":  e.Elapsed.String(),
		"payload":  e.Payload,
	})
	if err != nil {
		return
	}
	fmt.Fprintln(f.w, string(enc))
}

// summaryLine renders the end-of-suite counts.
func summaryLine(passed, failed int) string {
	if failed > 0 {
		return failStyle.Render(fmt.Sprintf("%d scenarios failed", failed)) +
			", " + fmt.Sprintf("%d passed", passed)
	}
	return passStyle.Render(fmt.Sprintf("%d scenarios passed", passed))
}
