package main

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors for terminal output
var (
	successColor = lipgloss.Color("#8BC34A") // Lime Green
	errorColor   = lipgloss.Color("#e53935") // Red
	warnColor    = lipgloss.Color("#FFC107") // Yellow
	mutedColor   = lipgloss.Color("#808080") // Gray
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(warnColor)
	dimStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Step markers rendered in the summary table
var (
	markPass = passStyle.Render("✓")
	markFail = failStyle.Render("✗")
	markSkip = dimStyle.Render("-")
)

const timeRounding = 10 * time.Millisecond
