package planner

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/state"
)

// pair classifies the union of desired and live URNs into actions
// (spec §4.6 step 2), before dependency ordering.
func pair(desired *resolver.ResolvedManifest, live *state.Snapshot, reg *catalog.Registry) ([]Action, error) {
	var actions []Action

	seen := make(map[identifier.URN]bool)

	for _, urn := range desired.Order {
		seen[urn] = true

		res := desired.Resources[urn]
		liveSpec, inLive := live.Objects[urn]

		if !inLive {
			// An implicit PUBLIC schema is never created explicitly
			// (spec §3.2, §8.3 scenario 1) — it only participates in
			// drift detection once it actually exists in live state.
			if isImplicitSchema(res) {
				continue
			}

			r := res
			actions = append(actions, Action{Kind: Create, URN: urn, ResourceKind: catalog.Kind(urn.Kind), After: &r})

			continue
		}

		a, err := diffOne(urn, res, liveSpec, reg)
		if err != nil {
			return nil, err
		}

		actions = append(actions, a...)
	}

	// Live URNs absent from the desired manifest: Drop if the kind is
	// synced, ignored otherwise (spec §4.6 step 2).
	var liveOnly []identifier.URN

	for urn := range live.Objects {
		if seen[urn] {
			continue
		}

		liveOnly = append(liveOnly, urn)
	}

	sort.Slice(liveOnly, func(i, j int) bool { return urnLess(liveOnly[i], liveOnly[j]) })

	for _, urn := range liveOnly {
		if !desired.SyncsKind(string(urn.Kind)) {
			continue
		}

		actions = append(actions, Action{Kind: Drop, URN: urn, ResourceKind: catalog.Kind(urn.Kind), Before: live.Objects[urn]})
	}

	return actions, nil
}

// diffOne compares one URN present in both the desired manifest and
// live state, producing zero, one, or two actions: an Update if
// non-owner fields differ, a Transfer if the owner differs, or both
// (spec §4.6 step 2 "If other fields differ and owner also differs:
// emit both Update and Transfer").
func diffOne(urn identifier.URN, desired resources.Resource, live state.Spec, reg *catalog.Registry) ([]Action, error) {
	spec, err := reg.Lookup(catalog.Kind(urn.Kind))
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	desiredMap, err := attrsToMap(desired.Attrs)
	if err != nil {
		return nil, err
	}

	delta := diffFields(desiredMap, live, spec, reg)

	ownerChanged := ownerDiffers(desired, live)

	var actions []Action

	if len(delta) > 0 {
		actions = append(actions, Action{
			Kind: Update, URN: urn, ResourceKind: catalog.Kind(urn.Kind),
			Before: live, After: &desired, Delta: delta,
		})
	}

	if ownerChanged {
		fromOwner, _ := live["owner"].(string)
		actions = append(actions, Action{
			Kind: Transfer, URN: urn, ResourceKind: catalog.Kind(urn.Kind),
			Before: live, After: &desired,
			FromOwner: fromOwner, ToOwner: desired.Owner.Name,
		})
	}

	return actions, nil
}

func ownerDiffers(desired resources.Resource, live state.Spec) bool {
	if desired.Owner.Name == "" {
		return false
	}

	liveOwner, _ := live["owner"].(string)
	if liveOwner == "" {
		return false
	}

	return !identifier.NewName(desired.Owner.Name, false).Equal(identifier.NewName(liveOwner, false))
}

// attrsToMap flattens a typed attribute record into a snake_case
// field map via the same marshal-then-unmarshal trick the manifest
// compiler uses for decoding (internal/manifest/expand.go,
// decodeAttrs), so the diff engine never needs a bespoke reflector.
func attrsToMap(attrs any) (map[string]any, error) {
	raw, err := yaml.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("planner: marshaling desired attrs: %w", err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("planner: unmarshaling desired attrs: %w", err)
	}

	return out, nil
}

// diffFields compares desired against live field by field, skipping
// attributes tagged ignore_changes or known_after_apply, comparing
// order-insensitive attributes as sets, and applying identifier
// equality to name-shaped values (spec §4.6 step 3). A grant's priv
// attribute gets the ALL-privilege expansion law instead (§8.2 Law
// "ALL-privilege expansion"): see grantPrivsEqual.
func diffFields(desired map[string]any, live state.Spec, spec catalog.KindSpec, reg *catalog.Registry) []string {
	var delta []string

	for _, attr := range spec.Attributes {
		if attr.Name == "owner" || attr.IgnoreChanges || attr.KnownAfterApply {
			continue
		}

		dv, dok := desired[attr.Name]
		lv, lok := live[attr.Name]

		if !dok && !lok {
			continue
		}

		if spec.Kind == catalog.KindGrant && attr.Name == "priv" {
			if !grantPrivsEqual(reg, desired, dv, lv) {
				delta = append(delta, attr.Name)
			}

			continue
		}

		if !fieldsEqual(dv, lv, attr.OrderInsensitive) {
			delta = append(delta, attr.Name)
		}
	}

	sort.Strings(delta)

	return delta
}

// grantPrivsEqual expands a bare ALL to the canonical privilege set
// for the granted-on kind on both the desired and live sides before
// comparing, so a desired `priv: ALL` grant compares equal to live
// state holding the full individual privilege set for that kind
// rather than drifting against it (spec §4.6 step 3, §8.2 Law
// "ALL-privilege expansion").
func grantPrivsEqual(reg *catalog.Registry, desired map[string]any, dv, lv any) bool {
	onType, _ := desired["on_type"].(string)

	dPrivs := expandPrivs(reg, onType, toStringSlice(singleton(dv)))
	lPrivs := expandPrivs(reg, onType, toStringSlice(lv))

	return setsEqual(dPrivs, lPrivs)
}

// expandPrivs replaces a lone "ALL" with the granted-on kind's full
// canonical privilege set via Registry.PrivsFor; any other privilege
// set passes through unchanged.
func expandPrivs(reg *catalog.Registry, onType string, privs []string) []string {
	if len(privs) != 1 || !strings.EqualFold(privs[0], "ALL") {
		return privs
	}

	all, err := reg.PrivsFor(catalog.Kind(strings.ToLower(onType)))
	if err != nil {
		return privs
	}

	return all
}

// singleton lifts a scalar attribute value (resources.Grant.Priv is a
// single string) into the one-element slice toStringSlice expects.
func singleton(v any) any {
	if s, ok := v.(string); ok {
		return []string{s}
	}

	return v
}

func fieldsEqual(a, b any, orderInsensitive bool) bool {
	if a == nil && b == nil {
		return true
	}

	if orderInsensitive {
		return setsEqual(toStringSlice(a), toStringSlice(b))
	}

	as, aok := a.(string)
	bs, bok := b.(string)

	if aok && bok {
		return identifier.NewName(as, false).Equal(identifier.NewName(bs, false)) || as == bs
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item))
		}

		return out
	default:
		return nil
	}
}

func setsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	am := make(map[string]int, len(a))
	for _, s := range a {
		am[s]++
	}

	for _, s := range b {
		if am[s] == 0 {
			return false
		}

		am[s]--
	}

	return true
}

// isImplicitSchema reports whether res is the PUBLIC schema the
// resolver injects for every database rather than one declared in the
// manifest (resolver.injectImplicitPublicSchemas).
func isImplicitSchema(res resources.Resource) bool {
	schema, ok := res.Attrs.(*resources.Schema)

	return ok && schema.Implicit
}

func urnLess(a, b identifier.URN) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}

	return a.Render() < b.Render()
}
