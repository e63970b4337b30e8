package bot

import (
	"context"
	"encoding/json"
	"fmt"

	"pulse_bot/internal/model"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Pulse Bot!

Monitor page engagement and get threshold alerts.

Quick start:
1. /add page facebook <profile_id> <name> — monitor a page
2. /threshold <id> 100 — alert at 100 reactions
3. /resume — start monitoring

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Source management:
/add page <network> <profile_id> <name> — monitor a social page
/add feed <url> [name] — monitor an RSS/Atom feed
/sources — show all sources
/remove <id> — delete a source
/threshold <id> <n|off> — set or disable the alert threshold

Monitoring:
/pause — pause polling
/resume — resume polling
/fetch — run one fetch cycle now
/clear — empty the post cache
/status — monitoring state and last run

Alerts:
/alerts — recent alerts
/read <alert_id> — mark an alert as read
/rmalert <alert_id> — delete an alert
/dismiss <post_id> — hide a post from displays`)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseAddArgs(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /add page <network> <profile_id> <name>\n       /add feed <url> [name]\n%v", err))
		return
	}

	src := &model.Source{
		Kind:         parsed.Kind,
		ProfileID:    parsed.ProfileID,
		Name:         parsed.Name,
		Network:      parsed.Network,
		AlertEnabled: true,
	}
	if err := b.store.CreateSource(ctx, src); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save source: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Source added.\n#%d %s [%s]\nNo alert threshold yet. Use /threshold %d <n> to set one.",
		src.ID, src.Name, src.Kind, src.ID))
}

func (b *Bot) handleSources(ctx context.Context, chatID int64) {
	sources, err := b.store.ListSources(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSourceList(sources))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <id>")
		return
	}

	src, err := b.store.GetSource(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Source #%d not found.", id))
		return
	}
	if err := b.store.DeleteSource(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to delete source: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Removed #%d %s. It will be skipped from the next cycle.", id, src.Name))
}

func (b *Bot) handleThreshold(ctx context.Context, chatID int64, args string) {
	id, threshold, err := ParseThresholdArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /threshold <id> <n|off>")
		return
	}

	src, err := b.store.GetSource(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Source #%d not found.", id))
		return
	}

	src.AlertThreshold = threshold
	if err := b.store.UpdateSource(ctx, src); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to update source: %v", err))
		return
	}

	if threshold == nil {
		b.reply(chatID, fmt.Sprintf("Alerting disabled for #%d %s.", src.ID, src.Name))
		return
	}
	b.reply(chatID, fmt.Sprintf("#%d %s now alerts at %d reactions.", src.ID, src.Name, *threshold))
}

func (b *Bot) handlePause(ctx context.Context, chatID int64) {
	if err := b.store.SetActive(ctx, false); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Monitoring paused. Scheduled cycles will be skipped.")
}

func (b *Bot) handleResume(ctx context.Context, chatID int64) {
	if err := b.store.SetActive(ctx, true); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Monitoring resumed.")
}

func (b *Bot) handleFetch(ctx context.Context, chatID int64) {
	if b.trigger == nil {
		b.reply(chatID, "Manual refresh is not available.")
		return
	}
	if err := b.trigger.RunNow(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Fetch cycle failed: %v", err))
		return
	}
	b.reply(chatID, "Fetch cycle completed.")
}

func (b *Bot) handleClear(ctx context.Context, chatID int64) {
	n, err := b.store.DeleteAllPosts(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Post cache cleared (%d posts). The next cycle rebuilds it.", n))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	state, err := b.store.GetRunState(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	unread, err := b.store.UnreadAlertCount(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatStatus(state, unread))
}

func (b *Bot) handleAlerts(ctx context.Context, chatID int64) {
	alerts, err := b.store.ListAlerts(ctx, 10)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatAlertList(alerts))
}

func (b *Bot) handleRead(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /read <alert_id>")
		return
	}
	if err := b.store.MarkAlertRead(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Alert #%d marked as read.", id))
}

func (b *Bot) handleRmAlert(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmalert <alert_id>")
		return
	}
	if err := b.store.DeleteAlert(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Alert #%d deleted.", id))
}

// handleDismiss appends a post ID to the opaque dismissed set in run state.
// The polling core never reads it; displays filter on it.
func (b *Bot) handleDismiss(ctx context.Context, chatID int64, args string) {
	postID, err := ParsePostIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /dismiss <post_id>")
		return
	}

	state, err := b.store.GetRunState(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	var dismissed []string
	if state.DismissedPosts != "" {
		if err := json.Unmarshal([]byte(state.DismissedPosts), &dismissed); err != nil {
			dismissed = nil
		}
	}
	for _, id := range dismissed {
		if id == postID {
			b.reply(chatID, "Post already dismissed.")
			return
		}
	}
	dismissed = append(dismissed, postID)

	raw, err := json.Marshal(dismissed)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := b.store.SetDismissedPosts(ctx, string(raw)); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Post dismissed.")
}
