package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/edgefleet/internal/orchestration"
)

// Colors matching internal/ui/tui/styles.go palette.
var (
	fleetColorGreen  = lipgloss.Color("#22c55e")
	fleetColorRed    = lipgloss.Color("#ef4444")
	fleetColorYellow = lipgloss.Color("#eab308")
	fleetColorDim    = lipgloss.Color("#6b7280")
	fleetColorWhite  = lipgloss.Color("#f9fafb")
)

var (
	fleetTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fleetColorWhite)

	fleetDimStyle = lipgloss.NewStyle().
			Foreground(fleetColorDim)

	fleetStatusStyles = map[orchestration.FleetStatus]lipgloss.Style{
		orchestration.StatusOnline:  lipgloss.NewStyle().Foreground(fleetColorGreen),
		orchestration.StatusOffline: lipgloss.NewStyle().Foreground(fleetColorRed),
		orchestration.StatusPending: lipgloss.NewStyle().Foreground(fleetColorYellow),
	}
)

const fleetHeaderFormat = "  %-16s %-15s %-12s %-8s %s"

// renderFleet produces the node list table.
func renderFleet(fleet []orchestration.FleetNode) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(fleetTitleStyle.Render(fmt.Sprintf("  Fleet (%d nodes)", len(fleet))))
	b.WriteString("\n")

	if len(fleet) == 0 {
		b.WriteString(fleetDimStyle.Render("  No nodes registered. Add one with 'edgefleet node add'."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fleetDimStyle.Render(fmt.Sprintf(fleetHeaderFormat, "NAME", "ADDRESS", "ROLE", "STATUS", "NOTES")))
	b.WriteString("\n")

	for _, n := range fleet {
		// Pad before styling so escape codes don't break alignment.
		status := fmt.Sprintf("%-8s", n.Status)
		if style, ok := fleetStatusStyles[n.Status]; ok {
			status = style.Render(status)
		}
		b.WriteString(fmt.Sprintf("  %-16s %-15s %-12s %s %s\n", n.Name, n.Address, fleetRole(n), status, fleetNotes(n)))
	}
	return b.String()
}

func fleetRole(n orchestration.FleetNode) string {
	switch {
	case n.IsMaster:
		return "master"
	case n.Kind == "":
		return "-"
	default:
		return string(n.Kind)
	}
}

func fleetNotes(n orchestration.FleetNode) string {
	var notes []string
	if !n.Registered {
		notes = append(notes, "not in registry")
	}
	if cpu, ok := n.Capacity["cpu"]; ok {
		notes = append(notes, "cpu="+cpu)
	}
	if mem, ok := n.Capacity["memory"]; ok {
		notes = append(notes, "memory="+mem)
	}
	return strings.Join(notes, " ")
}
