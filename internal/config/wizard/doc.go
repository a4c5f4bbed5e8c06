// Package wizard provides the interactive prompts of edgefleet.
//
// It uses charmbracelet/huh for form-based input. RunNodeWizard collects a
// registry entry for `edgefleet node add --interactive`; RunConfigWizard
// collects the essentials of edgefleet.yaml for `edgefleet init`, and
// WriteConfig writes the result with a descriptive header.
package wizard
