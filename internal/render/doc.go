// Package render draws parsed note blocks for the terminal, either directly
// with lipgloss or as markdown through glamour.
package render
