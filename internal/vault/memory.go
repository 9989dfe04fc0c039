package vault

import "strings"

// MemStore is an in-memory Store used by tests and by the CLI harness's
// demo loader.
type MemStore struct {
	items  []Item
	closed bool
}

// NewMemStore creates a store over a fixed item set.
func NewMemStore(items []Item) *MemStore {
	return &MemStore{items: items}
}

func (s *MemStore) Find(itemID string) (Item, error) {
	return FindVisible(s.items, itemID)
}

func (s *MemStore) Search(serviceIDs []string) []Item {
	var out []Item
	for _, it := range s.items {
		if !it.Visible() {
			continue
		}
		if len(serviceIDs) == 0 {
			out = append(out, it)
			continue
		}
		for _, id := range serviceIDs {
			if id == "" {
				continue
			}
			if strings.Contains(strings.ToLower(it.Title), strings.ToLower(id)) ||
				strings.Contains(strings.ToLower(it.Username), strings.ToLower(id)) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

func (s *MemStore) Close() { s.closed = true }

// Closed reports whether Close has been called. Test hook.
func (s *MemStore) Closed() bool { return s.closed }
