package domain

// TaxonomyEntry is one configured code, e.g. a team, impact level or tag.
type TaxonomyEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Registry is a read-only lookup over a configured enumeration. It is
// injected rather than held as package state so tests can substitute it.
type Registry interface {
	ListAll() []TaxonomyEntry
	FindByCode(code string) (TaxonomyEntry, bool)
}

type staticRegistry struct {
	entries []TaxonomyEntry
	byCode  map[string]TaxonomyEntry
}

// NewRegistry builds a Registry from configured entries.
func NewRegistry(entries []TaxonomyEntry) Registry {
	byCode := make(map[string]TaxonomyEntry, len(entries))
	for _, entry := range entries {
		byCode[entry.Code] = entry
	}
	return &staticRegistry{entries: entries, byCode: byCode}
}

func (r *staticRegistry) ListAll() []TaxonomyEntry {
	out := make([]TaxonomyEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *staticRegistry) FindByCode(code string) (TaxonomyEntry, bool) {
	entry, ok := r.byCode[code]
	return entry, ok
}
