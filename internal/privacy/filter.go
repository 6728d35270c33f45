// Package privacy applies rule-based suppression to derived output.
//
// Rules are evaluated at read time so that adding a rule retroactively
// hides matching entities from every query without touching the stored
// event log.
package privacy

import (
	"strings"

	"github.com/mkarlsen/dayblocks/internal/db"
	"github.com/mkarlsen/dayblocks/internal/models"
)

// Decision is the outcome of matching an entity against the rule set.
type Decision int

const (
	Keep Decision = iota
	Drop
	Mask
)

// Filter holds an immutable snapshot of the rule set. Load a fresh
// one per request; the rule-set version tags derived results.
type Filter struct {
	appRules    map[string]models.RuleAction
	domainRules map[string]models.RuleAction
	version     int64
}

// Load builds a Filter from the current rule set.
func Load(repo db.RuleRepository) (*Filter, error) {
	rules, err := repo.ListRules()
	if err != nil {
		return nil, err
	}
	version, err := repo.RulesVersion()
	if err != nil {
		return nil, err
	}
	return New(rules, version), nil
}

// New builds a Filter from an explicit rule list.
func New(rules []models.PrivacyRule, version int64) *Filter {
	f := &Filter{
		appRules:    make(map[string]models.RuleAction),
		domainRules: make(map[string]models.RuleAction),
		version:     version,
	}
	for _, r := range rules {
		switch r.Kind {
		case models.RuleApp:
			f.setAction(f.appRules, r.Value, r.Action)
		case models.RuleDomain:
			f.setAction(f.domainRules, strings.ToLower(r.Value), r.Action)
		}
	}
	return f
}

// setAction records an action for a value; drop wins over mask when
// multiple rules target the same value.
func (f *Filter) setAction(m map[string]models.RuleAction, value string, action models.RuleAction) {
	if existing, ok := m[value]; ok && existing == models.ActionDrop {
		return
	}
	m[value] = action
}

// Version returns the rule-set version this filter was built from.
func (f *Filter) Version() int64 {
	return f.version
}

// Decide matches an entity against the rule set. App rules match the
// exact entity; domain rules match the domain itself and all of its
// subdomains.
func (f *Filter) Decide(kind models.ItemKind, entity string) Decision {
	if len(f.appRules) == 0 && len(f.domainRules) == 0 {
		return Keep
	}

	switch kind {
	case models.ItemApp:
		if action, ok := f.appRules[entity]; ok {
			return decisionFor(action)
		}
	case models.ItemDomain:
		d := strings.ToLower(entity)
		for {
			if action, ok := f.domainRules[d]; ok {
				return decisionFor(action)
			}
			dot := strings.IndexByte(d, '.')
			if dot < 0 {
				break
			}
			d = d[dot+1:]
		}
	}
	return Keep
}

func decisionFor(action models.RuleAction) Decision {
	if action == models.ActionDrop {
		return Drop
	}
	return Mask
}

// Apply resolves the output identity for an entity: the possibly
// masked entity and kind, and whether it should be kept at all.
// Masked entities collapse into the single hidden sentinel.
func (f *Filter) Apply(kind models.ItemKind, entity string) (string, models.ItemKind, bool) {
	switch f.Decide(kind, entity) {
	case Drop:
		return "", kind, false
	case Mask:
		return models.HiddenEntity, models.ItemUnknown, true
	}
	return entity, kind, true
}

// FilterEvents applies the rule set to a raw event listing: dropped
// entities disappear, masked ones keep their slot with the hidden
// sentinel and no title.
func (f *Filter) FilterEvents(events []models.Event) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		entity, _, keep := f.Apply(e.SourceKind.EntityKind(), e.Entity)
		if !keep {
			continue
		}
		if entity != e.Entity {
			e.Entity = entity
			e.Title = ""
		}
		out = append(out, e)
	}
	return out
}
