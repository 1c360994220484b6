package audit

import "encoding/json"

// RenderJSON renders the report as indented JSON bytes.
func RenderJSON(report *Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
