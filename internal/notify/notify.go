// Package notify delivers wake-up outcomes to external channels. Delivery is
// best effort: a failed notification is logged by the caller and never turns a
// successful wake into a failure.
package notify

import (
	"fmt"
	"strings"

	"github.com/harunnryd/mezame/internal/history"
)

// FormatWake renders a wake record as a short human-readable message.
func FormatWake(rec history.WakeRecord) string {
	var b strings.Builder
	if rec.Success {
		b.WriteString("Wake-up succeeded")
	} else {
		b.WriteString("Wake-up failed")
	}
	fmt.Fprintf(&b, " (%s", rec.TriggerType)
	if rec.TriggerSource != "" {
		fmt.Fprintf(&b, "/%s", rec.TriggerSource)
	}
	b.WriteString(")")

	for _, m := range rec.Models {
		mark := "ok"
		if !m.Success {
			mark = "failed"
		}
		fmt.Fprintf(&b, "\n  %s: %s", m.Model, mark)
		if m.Message != "" {
			fmt.Fprintf(&b, " (%s)", m.Message)
		}
	}
	return b.String()
}
