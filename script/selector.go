package script

import "sync"

// Selector is a domain-local handle for a method name. Methods are stored
// in per-class tables indexed by selector; the zero Selector names nothing.
type Selector uint32

// selectorTable issues selectors in first-use order and never forgets one.
type selectorTable struct {
	mu  sync.RWMutex
	ids map[string]Selector
}

func newSelectorTable() *selectorTable {
	return &selectorTable{ids: make(map[string]Selector)}
}

// find returns the selector for name, or 0 if the domain has never seen it.
func (st *selectorTable) find(name string) Selector {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.ids[name]
}

// intern returns the selector for name, issuing the next one on first use.
func (st *selectorTable) intern(name string) Selector {
	if sel := st.find(name); sel != 0 {
		return sel
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	sel, ok := st.ids[name]
	if !ok {
		sel = Selector(len(st.ids) + 1)
		st.ids[name] = sel
	}
	return sel
}
