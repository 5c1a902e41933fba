// Package viz renders simulation progress and results in the terminal.
//
//   - [Live]: Bubble Tea progress view fed by a running simulation
//   - [Canvas]: Braille pixel canvas used to draw field contours
//   - [PlotColumns]: asciigraph line charts of the statistics table
//   - [RenderSummary]: lipgloss panel describing a stored run
package viz
