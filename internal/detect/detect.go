// Package detect decides whether a fetched batch differs from the previous
// one and steers the adaptive pre-fetch offset.
package detect

import (
	"crypto/sha256"
	"fmt"

	"pulse_bot/internal/fetcher"
)

// Adaptive offset tuning. When consecutive cycles see identical data the
// offset grows by OffsetStep, wrapping inside [0, OffsetBound), so polling
// drifts later until it lands after the upstream's refresh point.
const (
	OffsetStep  = 60
	OffsetBound = 300
)

// Fingerprint digests a batch down to its aggregate metric sums. Item ids,
// ordering and timestamps do not contribute: the comparison only answers
// "did the overall numbers move since last cycle".
func Fingerprint(items []fetcher.Item) string {
	var reactions, comments, shares int64
	for _, it := range items {
		reactions += it.Metrics.Reactions
		comments += it.Metrics.Comments
		shares += it.Metrics.Shares
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%d", reactions, comments, shares)))
	return fmt.Sprintf("%x", h[:16])
}

// Changed reports whether the new fingerprint indicates fresh upstream data.
// A missing stored fingerprint always counts as changed.
func Changed(newFP, storedFP string) bool {
	return storedFP == "" || newFP != storedFP
}

// NextOffset advances the adaptive offset by one step, wrapping within the
// bounded window.
func NextOffset(current int) int {
	return (current + OffsetStep) % OffsetBound
}
