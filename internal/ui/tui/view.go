package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderSteps(&b, m)
	if len(m.Log) > 0 {
		renderLog(&b, m)
	}
	if m.Summary != nil {
		renderSummary(&b, m)
	}
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := "edgefleet deploy"
	if m.Master != "" {
		title += fmt.Sprintf(" (master %s)", m.Master)
	}
	b.WriteString(titleStyle.Render(title))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += readyStyle.Render("Complete")
	case m.Message != "":
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame) + " ")
	default:
		status += dimStyle.Render("Starting...")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(barWidth*m.Percent/100, barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	eta := ""
	if m.EstimatedRemaining > 0 {
		eta = fmt.Sprintf(" ETA %s", formatDuration(m.EstimatedRemaining))
	}
	fmt.Fprintf(b, "  %s %d%%%s\n", bar, m.Percent, eta)
}

func renderSteps(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Steps"))
	b.WriteString("\n")

	for _, step := range m.Steps {
		var icon string
		var style styleFunc
		switch {
		case step.Failed:
			icon = crossMark
			style = sf(failedStyle)
		case step.Done:
			icon = checkMark
			style = sf(readyStyle)
		case step.Active:
			icon = currentSpinner(m.SpinnerFrame)
			style = sf(activeStyle)
		default:
			icon = pending
			style = sf(dimStyle)
		}
		fmt.Fprintf(b, "    %s %s\n", style(icon), style(step.Name))
	}
}

func renderLog(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Activity"))
	b.WriteString("\n")
	for i, line := range m.Log {
		style := dimStyle
		if i == len(m.Log)-1 {
			style = activeStyle
		}
		if strings.HasPrefix(line, "Failed") {
			style = warningStyle
		}
		fmt.Fprintf(b, "    %s\n", style.Render(line))
	}
}

func renderSummary(b *strings.Builder, m Model) {
	d := m.Summary.Details
	b.WriteString(sectionStyle.Render("  Summary"))
	b.WriteString("\n")
	fmt.Fprintf(b, "    master setup: %s\n", d.MasterSetup)
	fmt.Fprintf(b, "    workers in cluster: %d (%d new)\n", d.WorkersJoined, d.NewNodesAdded)
	fmt.Fprintf(b, "    manifests applied: %d, config resources: %d\n", d.ManifestsApplied, d.ConfigResourcesCreated)
	b.WriteString("    " + readyStyle.Render(m.Summary.Message) + "\n")
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  q: detach (the run continues)", elapsed)))
	b.WriteString("\n")
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
