package bot

import (
	"fmt"
	"strings"

	"pulse_bot/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"
)

// FormatAlert formats a threshold alert as a Telegram notification message.
func FormatAlert(a model.Alert, sourceName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] threshold crossed\n\n", sourceName)
	fmt.Fprintf(&b, "%d reactions (threshold %d)\n", a.Reactions, a.Threshold)
	if a.PostMessage != "" {
		msg := a.PostMessage
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		b.WriteString("\n")
		b.WriteString(msg)
	}
	if a.PostLink != "" {
		b.WriteString("\n\n")
		b.WriteString(a.PostLink)
	}
	return b.String()
}

// FormatSourceList formats the configured sources for display.
func FormatSourceList(sources []model.Source) string {
	if len(sources) == 0 {
		return "No sources yet. Use /add to configure one."
	}
	var b strings.Builder
	b.WriteString("Monitored sources:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "\n#%d %s [%s]", s.ID, s.Name, s.Kind)
		if s.Kind == model.KindPage {
			fmt.Fprintf(&b, " %s/%s", s.Network, s.ProfileID)
		}
		b.WriteString("\n")
		switch {
		case !s.AlertEnabled:
			b.WriteString("   alerts disabled\n")
		case s.AlertThreshold == nil:
			b.WriteString("   no threshold set\n")
		default:
			fmt.Fprintf(&b, "   alerts at %d reactions\n", *s.AlertThreshold)
		}
	}
	return b.String()
}

// FormatStatus formats the run state for display.
func FormatStatus(state *model.RunState, unreadAlerts int) string {
	var b strings.Builder
	status := statusPaused
	if state.Active {
		status = statusActive
	}
	fmt.Fprintf(&b, "Monitoring: %s\n", status)
	if state.LastRunAt != nil {
		fmt.Fprintf(&b, "Last cycle: %s (%s)\n", state.LastRunAt.Format("2006-01-02 15:04 UTC"), state.LastStatus)
	} else {
		b.WriteString("Last cycle: never\n")
	}
	fmt.Fprintf(&b, "Adaptive offset: %ds\n", state.OffsetSeconds)
	fmt.Fprintf(&b, "Unread alerts: %d", unreadAlerts)
	return b.String()
}

// FormatAlertList formats recent alerts for display.
func FormatAlertList(alerts []model.Alert) string {
	if len(alerts) == 0 {
		return "No alerts."
	}
	var b strings.Builder
	b.WriteString("Recent alerts:\n")
	for _, a := range alerts {
		marker := "NEW"
		if a.IsRead {
			marker = "read"
		}
		fmt.Fprintf(&b, "\n#%d [%s] post %s: %d reactions (threshold %d) at %s\n",
			a.ID, marker, a.PostID, a.Reactions, a.Threshold,
			a.TriggeredAt.Format("2006-01-02 15:04 UTC"))
	}
	return b.String()
}
