// Package patcher implements the effective-time patcher (§4.4): it
// filters an incoming batch of components against what is already on
// the branch, honoring patchReleaseVersion and the
// clearEffectiveTimes/copyReleaseFields toggles.
package patcher

import (
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/domain"
)

// PatchReleaseVersionDisabled is the sentinel disabling the patcher
// entirely: any effectiveTime may be replaced.
const PatchReleaseVersionDisabled = -1

// Config holds the per-import toggles the patcher consults.
type Config struct {
	ClearEffectiveTimes bool
	CopyReleaseFields   bool
	PatchReleaseVersion int
}

// Envelope is the minimal shape the patcher needs from an entity; all
// RF2 entity types satisfy it via domain.Component method promotion.
type Envelope interface {
	Envelope() *domain.Component
}

// Store is the narrow slice of C2 the patcher consults: existing
// versions of a component id at-or-after a given effectiveTime, and
// the last released version of an id, both scoped to a branch
// snapshot taken before the commit opened.
type Store[E Envelope] interface {
	ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error)
	LastReleased(dbc dbctx.Context, ids []string) (map[string]E, error)
}

// Counters tracks per-kind skipped rows for observability (§8
// testable property: the skipped counter equals the number of
// suppressed rows).
type Counters struct {
	Skipped int
}

// Patch groups incoming by effectiveTime and applies §4.4's rules,
// returning the entities that should still reach the persist buffer.
func Patch[E Envelope](dbc dbctx.Context, store Store[E], cfg Config, incoming []E, counters *Counters) ([]E, error) {
	if cfg.ClearEffectiveTimes {
		for _, e := range incoming {
			e.Envelope().Clear()
		}
	}

	if cfg.PatchReleaseVersion != PatchReleaseVersionDisabled {
		groups := map[int][]E{}
		for _, e := range incoming {
			et := effectiveTimeOf(e)
			groups[et] = append(groups[et], e)
		}

		kept := make([]E, 0, len(incoming))
		for et, group := range groups {
			ids := idsOf(group)
			strictlyAfter := et == cfg.PatchReleaseVersion
			existing, err := store.ExistingAtOrAfter(dbc, ids, et, strictlyAfter)
			if err != nil {
				return nil, err
			}
			for _, e := range group {
				if existing[e.Envelope().ID] {
					counters.Skipped++
					continue
				}
				kept = append(kept, e)
			}
		}
		incoming = kept
	}

	if cfg.CopyReleaseFields {
		var unreleased []E
		for _, e := range incoming {
			if e.Envelope().EffectiveTime == nil {
				unreleased = append(unreleased, e)
			}
		}
		if len(unreleased) > 0 {
			released, err := store.LastReleased(dbc, idsOf(unreleased))
			if err != nil {
				return nil, err
			}
			for _, e := range unreleased {
				prior, ok := released[e.Envelope().ID]
				if !ok {
					continue
				}
				applyReleaseEnvelope(e, prior)
			}
		}
	}

	return incoming, nil
}

func effectiveTimeOf[E Envelope](e E) int {
	env := e.Envelope()
	if env.EffectiveTime == nil {
		return 0
	}
	return *env.EffectiveTime
}

func idsOf[E Envelope](entities []E) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.Envelope().ID)
	}
	return ids
}

// applyReleaseEnvelope copies prior's release envelope onto incoming,
// then re-derives effectiveTime from whether the two now carry
// identical envelopes (§4.4).
func applyReleaseEnvelope[E Envelope](incoming E, prior E) {
	inc := incoming.Envelope()
	pr := prior.Envelope()
	inc.Released = pr.Released
	inc.ReleaseHash = pr.ReleaseHash
	inc.ReleasedEffectiveTime = pr.ReleasedEffectiveTime
	if inc.SameReleaseEnvelope(pr) {
		inc.EffectiveTime = pr.ReleasedEffectiveTime
	}
}
