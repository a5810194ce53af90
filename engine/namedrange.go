package engine

// namedRangeMapping tracks named ranges by name, distinct from
// rangeMapping's by-address interning: a name can be defined, or merely
// referenced-but-undefined, and reference counting decides when an
// undefined name can be forgotten.
type namedRangeMapping struct {
	nameToAddr map[string]RangeAddress
	defined    map[string]bool
	refCounts  map[string]int
}

func newNamedRangeMapping() *namedRangeMapping {
	return &namedRangeMapping{
		nameToAddr: make(map[string]RangeAddress),
		defined:    make(map[string]bool),
		refCounts:  make(map[string]int),
	}
}

// Intern records a reference to name, defined or not, by bumping its
// reference count.
func (m *namedRangeMapping) Intern(name string) {
	m.refCounts[name]++
}

func (m *namedRangeMapping) Define(name string, addr RangeAddress) {
	m.nameToAddr[name] = addr
	m.defined[name] = true
	if _, ok := m.refCounts[name]; !ok {
		m.refCounts[name] = 1
	}
}

func (m *namedRangeMapping) Undefine(name string) (removed bool) {
	delete(m.defined, name)
	delete(m.nameToAddr, name)
	m.refCounts[name]--
	if m.refCounts[name] <= 0 {
		delete(m.refCounts, name)
		return true
	}
	return false
}

func (m *namedRangeMapping) Lookup(name string) (RangeAddress, bool) {
	if !m.defined[name] {
		return RangeAddress{}, false
	}
	addr, ok := m.nameToAddr[name]
	return addr, ok
}

func (m *namedRangeMapping) IsDefined(name string) bool { return m.defined[name] }

func (m *namedRangeMapping) Contains(name string) bool {
	_, ok := m.refCounts[name]
	return ok
}

func (m *namedRangeMapping) DefinedNames() []string {
	result := make([]string, 0, len(m.defined))
	for name := range m.defined {
		result = append(result, name)
	}
	return result
}

func (m *namedRangeMapping) UndefinedNames() []string {
	result := make([]string, 0, len(m.refCounts))
	for name := range m.refCounts {
		if !m.defined[name] {
			result = append(result, name)
		}
	}
	return result
}
