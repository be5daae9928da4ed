package shadow

import (
	"slices"

	"golang.org/x/text/unicode/norm"

	"shadowgen/internal/meta"
)

// moduleContainer is the synthetic top-level type every module carries.
const moduleContainer = "<Module>"

// Select returns the definitions named in names that get a forwarding
// shadow, ordered so that every base precedes its derivatives. Names are
// full names ("NS.Type`1") compared after NFC normalisation.
func Select(m *meta.Module, names []string) []meta.DefID {
	return selectDefs(m, names, func(td *meta.TypeDef) bool { return !td.IsEnum() })
}

// SelectEnums returns the public enums named in names. Enums are copied as
// plain value types rather than forwarded.
func SelectEnums(m *meta.Module, names []string) []meta.DefID {
	return selectDefs(m, names, func(td *meta.TypeDef) bool { return td.IsEnum() })
}

func selectDefs(m *meta.Module, names []string, keep func(*meta.TypeDef) bool) []meta.DefID {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[norm.NFC.String(n)] = struct{}{}
	}
	var out []meta.DefID
	for _, id := range m.TypeDefs() {
		td := m.Type(id)
		if td.Namespace == "" && td.Name == moduleContainer {
			continue
		}
		if !td.IsPublic() || !keep(td) {
			continue
		}
		if _, ok := wanted[norm.NFC.String(td.FullName())]; !ok {
			continue
		}
		out = append(out, id)
	}
	depth := make(map[meta.DefID]int, len(out))
	for _, id := range out {
		depth[id] = InheritanceDepth(m, id)
	}
	slices.SortStableFunc(out, func(a, b meta.DefID) int {
		return depth[a] - depth[b]
	})
	return out
}

// InheritanceDepth is 1 for a type without base and 1 + depth(base)
// otherwise. Bases defined outside m count as depth 1.
func InheritanceDepth(m *meta.Module, id meta.DefID) int {
	seen := make(map[meta.DefID]struct{})
	depth := 1
	for {
		td := m.Type(id)
		if td == nil || td.Base == meta.NoType {
			return depth
		}
		seen[id] = struct{}{}
		depth++
		base, ok := m.HeadDef(td.Base)
		if !ok {
			return depth
		}
		if _, cyclic := seen[base]; cyclic {
			return depth
		}
		id = base
	}
}
