package commodity

import "fmt"

// Info is the static description of one commodity.
type Info struct {
	Kind       Kind             `json:"kind"`
	Name       string           `json:"name"`
	BasePrice  float64          `json:"base_price"` // Seed price for new price beliefs
	Production float64          `json:"production"` // Units of output per unit of production run
	Deps       map[Kind]float64 `json:"deps"`       // Inputs consumed per production run
}

// Registry is the commodity catalog. It is passed explicitly to the market and
// agents so independent markets can run side by side.
type Registry struct {
	entries [NumKinds]*Info
}

// NewRegistry creates an empty catalog.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry builds the farm catalog: four seeds with no inputs and four
// crops that each consume one of their seed.
func DefaultRegistry() *Registry {
	basePrices := map[Kind]float64{
		CarrotSeed:  2,
		CornSeed:    3,
		PotatoSeed:  2,
		LettuceSeed: 4,
		Carrot:      6,
		Corn:        8,
		Potato:      5,
		Lettuce:     10,
	}

	r := NewRegistry()
	for _, k := range All() {
		info := Info{
			Kind:       k,
			Name:       k.String(),
			BasePrice:  basePrices[k],
			Production: 1,
		}
		if !k.IsSeed() {
			info.Deps = map[Kind]float64{SeedOf(k): 1}
			info.Production = 2 // One seed yields two crops
		}
		// Cannot fail: every kind is valid and added once.
		_ = r.Add(info)
	}
	return r
}

// Add configures a commodity. Returns an error if the kind is invalid or
// already present.
func (r *Registry) Add(info Info) error {
	if !info.Kind.Valid() {
		return fmt.Errorf("add %d: %w", uint8(info.Kind), ErrUnknownKind)
	}
	if r.entries[info.Kind] != nil {
		return fmt.Errorf("add %s: already registered", info.Kind)
	}
	for dep := range info.Deps {
		if !dep.Valid() {
			return fmt.Errorf("add %s: dependency %d: %w", info.Kind, uint8(dep), ErrUnknownKind)
		}
	}
	if info.Name == "" {
		info.Name = info.Kind.String()
	}
	r.entries[info.Kind] = &info
	return nil
}

// Get returns the info for k.
func (r *Registry) Get(k Kind) (Info, error) {
	if !k.Valid() || r.entries[k] == nil {
		return Info{}, fmt.Errorf("get %s: %w", k, ErrUnknownKind)
	}
	return *r.entries[k], nil
}

// MustGet is Get for callers where a missing kind is a precondition violation.
func (r *Registry) MustGet(k Kind) Info {
	info, err := r.Get(k)
	if err != nil {
		panic(err)
	}
	return info
}

// Has reports whether k is configured.
func (r *Registry) Has(k Kind) bool {
	return k.Valid() && r.entries[k] != nil
}

// Kinds returns the configured kinds in enumeration order.
func (r *Registry) Kinds() []Kind {
	var kinds []Kind
	for i, e := range r.entries {
		if e != nil {
			kinds = append(kinds, Kind(i))
		}
	}
	return kinds
}
