package scheme

// GlobalState is the parser-wide state that persists across NALUs: a set
// of named namespaces (e.g. "sps", "pps"), each keyed by an integer id
// (e.g. seq_parameter_set_id), holding a copy of the field map most
// recently saved under that key.
//
// It is owned by the NALU parser facade and mutated only by
// save_as_global directives; load_global directives read it but never
// mutate it.
type GlobalState struct {
	namespaces map[string]map[int]map[string]any
}

// NewGlobalState returns an empty GlobalState.
func NewGlobalState() *GlobalState {
	return &GlobalState{namespaces: make(map[string]map[int]map[string]any)}
}

// Save copies fields into namespace[key], replacing whatever was there.
func (g *GlobalState) Save(namespace string, key int, fields map[string]any) {
	ns, ok := g.namespaces[namespace]
	if !ok {
		ns = make(map[int]map[string]any)
		g.namespaces[namespace] = ns
	}
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	ns[key] = cp
}

// Load returns a copy of namespace[key] and whether it was present.
func (g *GlobalState) Load(namespace string, key int) (map[string]any, bool) {
	ns, ok := g.namespaces[namespace]
	if !ok {
		return nil, false
	}
	fields, ok := ns[key]
	if !ok {
		return nil, false
	}
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return cp, true
}

// Has reports whether namespace[key] has been saved.
func (g *GlobalState) Has(namespace string, key int) bool {
	ns, ok := g.namespaces[namespace]
	if !ok {
		return false
	}
	_, ok = ns[key]
	return ok
}

// Keys returns the sorted-ascending list of keys saved in namespace.
func (g *GlobalState) Keys(namespace string) []int {
	ns := g.namespaces[namespace]
	keys := make([]int, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
