// Package poller runs one fetch cycle across all configured sources.
package poller

import (
	"context"
	"fmt"
	"log/slog"

	"pulse_bot/internal/alert"
	"pulse_bot/internal/bot"
	"pulse_bot/internal/detect"
	"pulse_bot/internal/fetcher"
	"pulse_bot/internal/model"
	"pulse_bot/internal/storage"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Poller orchestrates fetch, change detection, caching and alerting for a
// single cycle.
type Poller struct {
	store       storage.Storage
	providers   map[model.SourceKind]fetcher.Provider
	engine      *alert.Engine
	sender      Sender
	alertChatID int64
	log         *slog.Logger
}

// New creates a Poller. A zero alertChatID or nil sender disables alert
// delivery; alert records are still written.
func New(store storage.Storage, providers map[model.SourceKind]fetcher.Provider,
	engine *alert.Engine, sender Sender, alertChatID int64, log *slog.Logger) *Poller {
	return &Poller{
		store:       store,
		providers:   providers,
		engine:      engine,
		sender:      sender,
		alertChatID: alertChatID,
		log:         log,
	}
}

type fetched struct {
	src   model.Source
	items []fetcher.Item
}

// RunCycle fetches all sources, fingerprints the batch before any cache
// write, upserts snapshots and evaluates alerts. A failing source is
// logged and skipped; only storage-level errors fail the cycle.
func (p *Poller) RunCycle(ctx context.Context) error {
	sources, err := p.store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	state, err := p.store.GetRunState(ctx)
	if err != nil {
		return fmt.Errorf("get run state: %w", err)
	}

	var results []fetched
	var batch []fetcher.Item
	for _, src := range sources {
		provider, ok := p.providers[src.Kind]
		if !ok {
			p.log.Error("no provider for source kind", "source_id", src.ID, "kind", src.Kind)
			continue
		}
		items, err := provider.Fetch(ctx, src)
		if err != nil {
			p.log.Error("fetch source", "source_id", src.ID, "name", src.Name, "error", err)
			continue
		}
		results = append(results, fetched{src: src, items: items})
		batch = append(batch, items...)
	}

	// Fingerprint reflects what was fetched, not what the upsert makes of it.
	fp := detect.Fingerprint(batch)
	if detect.Changed(fp, state.LastFingerprint) {
		if err := p.store.SetFingerprint(ctx, fp); err != nil {
			return fmt.Errorf("store fingerprint: %w", err)
		}
	} else {
		next := detect.NextOffset(state.OffsetSeconds)
		if err := p.store.SetOffset(ctx, next); err != nil {
			return fmt.Errorf("store offset: %w", err)
		}
		p.log.Info("upstream unchanged, shifting next fetch", "offset_seconds", next)
	}

	for _, f := range results {
		for _, item := range f.items {
			post := &model.Post{
				ExternalID: item.ID,
				SourceID:   f.src.ID,
				Message:    item.Message,
				Image:      item.Image,
				Link:       item.Link,
				PostedAt:   item.PostedAt,
				Current:    item.Metrics,
			}
			if _, err := p.store.UpsertPost(ctx, post); err != nil {
				p.log.Error("upsert post", "source_id", f.src.ID, "post_id", item.ID, "error", err)
				continue
			}

			a, err := p.engine.Evaluate(ctx, f.src, item)
			if err != nil {
				p.log.Error("evaluate alert", "source_id", f.src.ID, "post_id", item.ID, "error", err)
				continue
			}
			if a != nil {
				p.log.Info("alert triggered", "source_id", f.src.ID, "post_id", item.ID,
					"reactions", a.Reactions, "threshold", a.Threshold)
				if p.sender != nil && p.alertChatID != 0 {
					p.sender.SendMessage(p.alertChatID, bot.FormatAlert(*a, f.src.Name))
				}
			}
		}
		p.log.Debug("cached posts", "source_id", f.src.ID, "name", f.src.Name, "count", len(f.items))
	}

	return nil
}
