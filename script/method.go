package script

// Func implements a dynamic method. self is nil for static methods.
type Func func(self *Instance, args []Value) (Value, error)

// Visibility is the access level a method was declared with.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "unknown"
}

// BindingFlags select which methods a lookup may return.
type BindingFlags uint8

const (
	BindInstance BindingFlags = 1 << iota
	BindStatic
	BindPublic
	BindNonPublic
)

// Method is a method declared on a Class.
type Method struct {
	name     string
	selector Selector
	vis      Visibility
	static   bool
	arity    int // -1 for variadic
	fn       Func
	owner    *Class
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Visibility returns the declared access level.
func (m *Method) Visibility() Visibility { return m.vis }

// Static reports whether the method is class-side.
func (m *Method) Static() bool { return m.static }

// Arity returns the declared argument count, or -1 for variadic methods.
func (m *Method) Arity() int { return m.arity }

// Owner returns the declaring class.
func (m *Method) Owner() *Class { return m.owner }

// String implements the Stringer interface.
func (m *Method) String() string {
	if m.owner == nil {
		return m.name
	}
	return m.owner.FullName() + "." + m.name
}

// visible reports whether a lookup with flags may see m, where inherited is
// true when m was found on a superclass of the class being searched.
func (m *Method) visible(flags BindingFlags, inherited bool) bool {
	if m.static {
		if flags&BindStatic == 0 {
			return false
		}
	} else if flags&BindInstance == 0 {
		return false
	}
	switch m.vis {
	case Public:
		return flags&BindPublic != 0
	case Protected:
		return flags&BindNonPublic != 0
	default:
		// Private members are only visible on their declaring class.
		return flags&BindNonPublic != 0 && !inherited
	}
}
