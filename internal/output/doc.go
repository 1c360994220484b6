// Package output provides styled terminal output for azaudit.
//
// Log lines go to stderr through charmbracelet/log; reports and JSON
// envelopes go to stdout so they can be piped. In --json mode the styled
// helpers are silent and only JSON is written. NO_COLOR is honoured.
package output
