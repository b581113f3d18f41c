package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rahul/mishri-pev/internal/pev"
)

const maxResultPreview = 200

// FormatReport renders a run outcome as a chat message.
func FormatReport(verdict pev.VerifyResult, results []pev.StepResult) string {
	var b strings.Builder

	switch verdict.Status {
	case pev.StatusSuccess:
		b.WriteString("✅ ")
	case pev.StatusPartial:
		b.WriteString("⚠️ ")
	default:
		b.WriteString("❌ ")
	}
	fmt.Fprintf(&b, "%s: %s", verdict.Status, verdict.Explanation)

	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "\n%d. ok", r.StepIndex)
			if preview := previewResult(r.Result); preview != "" {
				fmt.Fprintf(&b, " %s", preview)
			}
			continue
		}
		fmt.Fprintf(&b, "\n%d. failed: %s", r.StepIndex, r.Error)
	}
	return b.String()
}

func previewResult(v any) string {
	if v == nil {
		return ""
	}
	var s string
	if str, ok := v.(string); ok {
		s = str
	} else if data, err := json.Marshal(v); err == nil {
		s = string(data)
	} else {
		s = fmt.Sprint(v)
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxResultPreview {
		s = string([]rune(s)[:maxResultPreview]) + "..."
	}
	return s
}

// truncate shortens text to at most limit runes, marking the cut with "...".
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit-3]) + "..."
}
