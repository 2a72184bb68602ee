package script

// methodTable holds the methods one class declares itself, indexed by
// selector. Inherited methods are found by walking the class chain, so a
// table never holds its superclass's methods.
type methodTable struct {
	slots []*Method
}

func (mt *methodTable) at(sel Selector) *Method {
	if int(sel) < len(mt.slots) {
		return mt.slots[sel]
	}
	return nil
}

// put stores m at its selector, replacing any earlier declaration.
func (mt *methodTable) put(m *Method) {
	if n := int(m.selector) + 1; n > len(mt.slots) {
		mt.slots = append(mt.slots, make([]*Method, n-len(mt.slots))...)
	}
	mt.slots[m.selector] = m
}

// declared returns the stored methods in selector order.
func (mt *methodTable) declared() []*Method {
	out := make([]*Method, 0, len(mt.slots))
	for _, m := range mt.slots {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
