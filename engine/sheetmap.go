package engine

import "strings"

// sheetMapping interns sheet names case-insensitively and trimmed,
// assigning dense sequential ids; the display name keeps its original
// casing.
type sheetMapping struct {
	nameToID map[string]SheetID // normalized name -> id
	idToName map[SheetID]string // id -> display name (original casing)
	nextID   SheetID
}

func newSheetMapping() *sheetMapping {
	return &sheetMapping{
		nameToID: make(map[string]SheetID),
		idToName: make(map[SheetID]string),
		nextID:   1,
	}
}

func normalizeSheetName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add interns a new sheet name, returning its id, or an AppError if a
// sheet with that (normalized) name already exists.
func (m *sheetMapping) Add(name string) (SheetID, error) {
	key := normalizeSheetName(name)
	if _, exists := m.nameToID[key]; exists {
		return 0, NewAppError(AlreadyExists, "sheet %q already exists", name)
	}
	id := m.nextID
	m.nextID++
	m.nameToID[key] = id
	m.idToName[id] = strings.TrimSpace(name)
	return id, nil
}

func (m *sheetMapping) Remove(name string) (SheetID, error) {
	key := normalizeSheetName(name)
	id, exists := m.nameToID[key]
	if !exists {
		return 0, NewAppError(NotFound, "sheet %q not found", name)
	}
	delete(m.nameToID, key)
	delete(m.idToName, id)
	return id, nil
}

func (m *sheetMapping) Rename(oldName, newName string) (SheetID, error) {
	oldKey := normalizeSheetName(oldName)
	id, exists := m.nameToID[oldKey]
	if !exists {
		return 0, NewAppError(NotFound, "sheet %q not found", oldName)
	}
	newKey := normalizeSheetName(newName)
	if newKey != oldKey {
		if _, clash := m.nameToID[newKey]; clash {
			return 0, NewAppError(AlreadyExists, "sheet %q already exists", newName)
		}
	}
	delete(m.nameToID, oldKey)
	m.nameToID[newKey] = id
	m.idToName[id] = strings.TrimSpace(newName)
	return id, nil
}

func (m *sheetMapping) IDByName(name string) (SheetID, bool) {
	id, ok := m.nameToID[normalizeSheetName(name)]
	return id, ok
}

func (m *sheetMapping) NameByID(id SheetID) (string, bool) {
	name, ok := m.idToName[id]
	return name, ok
}

func (m *sheetMapping) Names() []string {
	names := make([]string, 0, len(m.idToName))
	for _, n := range m.idToName {
		names = append(names, n)
	}
	return names
}
