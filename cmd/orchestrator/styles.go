package main

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	stdoutStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	stderrStyle = lipgloss.NewStyle().Foreground(colorRed)
	systemStyle = lipgloss.NewStyle().Foreground(colorDim).Italic(true)

	stepStyle     = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	decisionStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	cancelStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	doneOKStyle   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	doneFailStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	planningStyle = lipgloss.NewStyle().Foreground(colorCyan)
	runningStyle  = lipgloss.NewStyle().Foreground(colorBlue)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
)
