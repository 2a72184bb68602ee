package script

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chazu/hostbridge/host"
)

func nop(self *Instance, args []Value) (Value, error) { return nil, nil }

// ---------------------------------------------------------------------------
// Selector tests
// ---------------------------------------------------------------------------

func TestSelectors(t *testing.T) {
	d := NewDomain(t.Name())

	update := d.Selector("Update")
	if update == 0 {
		t.Fatal("Selector issued the zero handle")
	}
	if again := d.Selector("Update"); again != update {
		t.Errorf("re-Selector got %d, want %d", again, update)
	}
	if start := d.Selector("Start"); start == update || start == 0 {
		t.Errorf("Start selector = %d, Update = %d", start, update)
	}

	// Method lookup by a name no method uses does not issue a selector.
	cls, _ := d.DefineClass("A", host.BehaviourType)
	if cls.Method("Awake", BindInstance|BindPublic) != nil {
		t.Error("Method found an undeclared name")
	}
	if got := d.selectors.find("Awake"); got != 0 {
		t.Errorf("lookup interned Awake as %d", got)
	}

	m := cls.AddMethod("Update", Public, 0, nop)
	if got := cls.MethodBySelector(update, BindInstance|BindPublic); got != m {
		t.Errorf("MethodBySelector(Update) = %v, want %v", got, m)
	}
	if got := cls.MethodBySelector(0, BindInstance|BindPublic); got != nil {
		t.Errorf("MethodBySelector(0) = %v, want nil", got)
	}
	if cls.MethodBySelector(update, BindStatic|BindPublic) != nil {
		t.Error("instance method matched a static-only lookup")
	}
}

func TestSelectorConcurrentFirstUse(t *testing.T) {
	d := NewDomain(t.Name())
	var wg sync.WaitGroup
	sels := make([]Selector, 32)
	for i := range sels {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sels[i] = d.Selector("OnEnable")
		}(i)
	}
	wg.Wait()
	for _, sel := range sels {
		if sel != sels[0] {
			t.Fatalf("concurrent first use issued different selectors: %v", sels)
		}
	}
	if sels[0] != d.Selector("OnEnable") || d.Selector("OnDisable") != sels[0]+1 {
		t.Errorf("selectors not issued densely: %d", sels[0])
	}
}

// ---------------------------------------------------------------------------
// Class tests
// ---------------------------------------------------------------------------

func TestDefineClass(t *testing.T) {
	d := NewDomain("test")
	foo, err := d.DefineClass("Game::Foo", host.BehaviourType)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	if foo.ID() != 1 {
		t.Errorf("first class ID = %d, want 1", foo.ID())
	}
	if foo.Name() != "Foo" || foo.FullName() != "Game::Foo" {
		t.Errorf("names = %q, %q", foo.Name(), foo.FullName())
	}
	if foo.BaseType() != host.BehaviourType {
		t.Errorf("BaseType() = %v, want Behaviour", foo.BaseType())
	}
	if d.Lookup("Game::Foo") != foo || d.ClassByID(foo.ID()) != foo {
		t.Error("lookup by name or ID failed")
	}
	if d.ClassByID(0) != nil || d.ClassByID(99) != nil {
		t.Error("ClassByID should reject invalid IDs")
	}

	if _, err := d.DefineClass("Game::Foo", host.BehaviourType); !errors.Is(err, ErrClassExists) {
		t.Errorf("duplicate DefineClass error = %v, want ErrClassExists", err)
	}
	if _, err := d.DefineClass("Bar", nil); !errors.Is(err, ErrNoBase) {
		t.Errorf("DefineClass without base error = %v, want ErrNoBase", err)
	}
	var nilNative *host.NativeType
	if _, err := d.DefineClass("Typed", nilNative); !errors.Is(err, ErrNoBase) {
		t.Errorf("DefineClass with nil *NativeType base error = %v, want ErrNoBase", err)
	}
	var nilClass *Class
	if _, err := d.DefineClass("TypedClass", nilClass); !errors.Is(err, ErrNoBase) {
		t.Errorf("DefineClass with nil *Class base error = %v, want ErrNoBase", err)
	}
	if d.Lookup("Typed") != nil || d.Lookup("TypedClass") != nil {
		t.Error("rejected classes were registered")
	}

	other := NewDomain("other")
	if other.ID() == d.ID() {
		t.Error("domains share an ID")
	}
	if _, err := other.DefineClass("Baz", foo); !errors.Is(err, ErrForeignClass) {
		t.Errorf("cross-domain base error = %v, want ErrForeignClass", err)
	}
}

func TestClassHierarchy(t *testing.T) {
	d := NewDomain("test")
	base, _ := d.DefineClass("Base", host.BehaviourType)
	derived, _ := d.DefineClass("Derived", base)

	if derived.Superclass() != base {
		t.Error("Superclass() wrong")
	}
	if derived.NativeBase() != host.BehaviourType {
		t.Errorf("NativeBase() = %v, want Behaviour", derived.NativeBase())
	}
	if !derived.IsSubclassOf(base) || base.IsSubclassOf(derived) {
		t.Error("IsSubclassOf wrong")
	}
	if !host.IsSubtype(derived, host.ComponentType) {
		t.Error("dynamic class should be a host subtype of Component")
	}
	if got := d.Classes(); len(got) != 2 || got[0] != base || got[1] != derived {
		t.Errorf("Classes() = %v", got)
	}
}

func TestMethodVisibility(t *testing.T) {
	d := NewDomain("test")
	base, _ := d.DefineClass("Base", host.BehaviourType)
	derived, _ := d.DefineClass("Derived", base)

	pub := base.AddMethod("Update", Public, 0, nop)
	prot := base.AddMethod("OnEnable", Protected, 0, nop)
	base.AddMethod("Awake", Private, 0, nop)
	own := derived.AddMethod("Start", Private, 0, nop)
	static := derived.AddStaticMethod("Create", 0, nop)

	all := BindInstance | BindPublic | BindNonPublic

	tests := []struct {
		name  string
		class *Class
		flags BindingFlags
		want  *Method
	}{
		{"Update", derived, all, pub},
		{"Update", derived, BindInstance | BindNonPublic, nil},
		{"OnEnable", derived, all, prot},
		{"OnEnable", derived, BindInstance | BindPublic, nil},
		{"Awake", derived, all, nil}, // private to Base
		{"Awake", base, all, base.Method("Awake", all)},
		{"Start", derived, all, own},
		{"Create", derived, all, nil},
		{"Create", derived, BindStatic | BindPublic, static},
		{"Missing", derived, all, nil},
	}
	for _, tt := range tests {
		if got := tt.class.Method(tt.name, tt.flags); got != tt.want {
			t.Errorf("%s.Method(%q, %b) = %v, want %v", tt.class, tt.name, tt.flags, got, tt.want)
		}
	}
	if base.Method("Awake", all) == nil {
		t.Error("private method not visible on declaring class")
	}
}

func TestOverridingMethodShadowsBase(t *testing.T) {
	d := NewDomain("test")
	base, _ := d.DefineClass("Base", host.BehaviourType)
	derived, _ := d.DefineClass("Derived", base)
	base.AddMethod("Update", Public, 0, nop)
	mine := derived.AddMethod("Update", Private, 0, nop)

	if got := derived.Method("Update", BindInstance|BindPublic|BindNonPublic); got != mine {
		t.Errorf("Method(Update) = %v, want derived override", got)
	}
	if got := derived.Methods(); len(got) != 1 || got[0] != mine {
		t.Errorf("Methods() = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

func TestInvoke(t *testing.T) {
	d := NewDomain("test")
	c, _ := d.DefineClass("Counter", host.BehaviourType)
	inc := c.AddMethod("Increment", Public, 1, func(self *Instance, args []Value) (Value, error) {
		n, _ := self.Get("n").(int64)
		step, _ := args[0].(int64)
		self.Set("n", n+step)
		return n + step, nil
	})

	inst, _ := d.NewInstance(c)
	got, err := d.Invoke(inst, inc, []Value{int64(2)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != int64(2) || inst.Get("n") != int64(2) {
		t.Errorf("Invoke result %v, field %v", got, inst.Get("n"))
	}

	if _, err := d.Invoke(inst, inc, nil); !errors.Is(err, ErrArity) {
		t.Errorf("arity mismatch error = %v, want ErrArity", err)
	}
	if _, err := d.Invoke(nil, inc, []Value{int64(1)}); !errors.Is(err, ErrNilReceiver) {
		t.Errorf("nil receiver error = %v, want ErrNilReceiver", err)
	}

	other, _ := d.DefineClass("Other", host.BehaviourType)
	stranger, _ := d.NewInstance(other)
	if _, err := d.Invoke(stranger, inc, []Value{int64(1)}); !errors.Is(err, ErrWrongReceiver) {
		t.Errorf("wrong receiver error = %v, want ErrWrongReceiver", err)
	}
}

func TestInvokeReturnsMethodErrorUnchanged(t *testing.T) {
	boom := errors.New("boom")
	d := NewDomain("test")
	c, _ := d.DefineClass("Failing", host.BehaviourType)
	m := c.AddMethod("Update", Public, 0, func(*Instance, []Value) (Value, error) { return nil, boom })
	inst, _ := d.NewInstance(c)

	if _, err := d.Invoke(inst, m, nil); err != boom {
		t.Errorf("Invoke error = %v, want the method's own error value", err)
	}
}

func TestInvokeTracing(t *testing.T) {
	d := NewDomain("test")
	c, _ := d.DefineClass("Traced", host.BehaviourType)
	m := c.AddMethod("Update", Public, 0, nop)
	inst, _ := d.NewInstance(c)

	var records []InvokeRecord
	profiler := NewProfiler()
	d.SetTracer(Tracers(TracerFunc(func(rec InvokeRecord) { records = append(records, rec) }), nil, profiler))

	d.Invoke(inst, m, nil)
	d.Invoke(inst, m, nil)

	if len(records) != 2 {
		t.Fatalf("traced %d invocations, want 2", len(records))
	}
	if records[0].Method != m || records[0].Class() != c || records[0].Domain != d.ID() {
		t.Errorf("record = %+v", records[0])
	}
	if p := profiler.GetMethodProfile(m); p == nil || p.InvocationCount != 2 {
		t.Errorf("profile = %+v, want 2 invocations", p)
	}

	d.SetTracer(nil)
	d.Invoke(inst, m, nil)
	if len(records) != 2 {
		t.Error("tracer still called after SetTracer(nil)")
	}
}

// ---------------------------------------------------------------------------
// Bindings and overrides
// ---------------------------------------------------------------------------

func TestIsDynamic(t *testing.T) {
	d := NewDomain("test")
	c, _ := d.DefineClass("Foo", host.BehaviourType)

	if got, ok := d.IsDynamic(c); !ok || got != c {
		t.Error("class not recognised as dynamic")
	}
	if _, ok := d.IsDynamic(host.ColliderType); ok {
		t.Error("native type recognised as dynamic")
	}
	if _, ok := NewDomain("other").IsDynamic(c); ok {
		t.Error("class recognised by a foreign domain")
	}
}

func TestProxyBindingFor(t *testing.T) {
	d := NewDomain("test")
	special := host.NewNativeType("SpecialBehaviour", host.BehaviourType, nil)
	proxy := host.NewNativeType("Proxy", host.BehaviourType, nil)
	specialProxy := host.NewNativeType("SpecialProxy", special, nil)
	d.RegisterProxyBinding(host.BehaviourType, proxy)
	d.RegisterProxyBinding(special, specialProxy)

	plain, _ := d.DefineClass("Plain", host.BehaviourType)
	fancy, _ := d.DefineClass("Fancy", special)
	fancier, _ := d.DefineClass("Fancier", fancy)
	loose, _ := d.DefineClass("Loose", host.ColliderType)

	tests := []struct {
		t    host.Type
		want *host.NativeType
		ok   bool
	}{
		{plain.BaseType(), proxy, true},
		{fancy.BaseType(), specialProxy, true},
		{fancier.BaseType(), specialProxy, true},
		{loose.BaseType(), nil, false},
	}
	for _, tt := range tests {
		got, ok := d.ProxyBindingFor(tt.t)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ProxyBindingFor(%v) = %v, %v; want %v, %v", tt.t, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOverrides(t *testing.T) {
	d := NewDomain("test")
	key := Key("Object", "AddComponent", "Type")
	if key.String() != "Object.AddComponent(Type)" {
		t.Errorf("key = %s", key)
	}

	if _, err := d.CallNative(key, nil, nil); !errors.Is(err, ErrNoBinding) {
		t.Errorf("unbound CallNative error = %v, want ErrNoBinding", err)
	}

	var seen MethodKey
	err := d.BindOverride(key, func(_ *Domain, k MethodKey, receiver any, args []Value) (Value, error) {
		seen = k
		return receiver, nil
	})
	if err != nil {
		t.Fatalf("BindOverride: %v", err)
	}
	if err := d.BindOverride(key, nil); !errors.Is(err, ErrOverrideExists) {
		t.Errorf("second BindOverride error = %v, want ErrOverrideExists", err)
	}

	got, err := d.CallNative(key, "receiver", nil)
	if err != nil || got != "receiver" || seen != key {
		t.Errorf("CallNative = %v, %v (seen %v)", got, err, seen)
	}
	if keys := d.Overrides(); len(keys) != 1 || keys[0] != key {
		t.Errorf("Overrides() = %v", keys)
	}
}

type fakeProxy struct {
	bound *Instance
	err   error
}

func (p *fakeProxy) InitializeProxy(d *Domain, inst *Instance) error {
	p.bound = inst
	return p.err
}

func TestCreateInstanceFromProxy(t *testing.T) {
	d := NewDomain("test")
	c, _ := d.DefineClass("Foo", host.BehaviourType)

	p := &fakeProxy{}
	inst, err := d.CreateInstanceFromProxy(c, p)
	if err != nil {
		t.Fatalf("CreateInstanceFromProxy: %v", err)
	}
	if p.bound != inst || inst.Proxy() != p || inst.Class() != c {
		t.Error("instance and proxy not linked")
	}

	boom := errors.New("boom")
	if _, err := d.CreateInstanceFromProxy(c, &fakeProxy{err: boom}); err != boom {
		t.Errorf("bind failure = %v, want boom unchanged", err)
	}
	if _, err := d.CreateInstanceFromProxy(c, nil); !errors.Is(err, ErrNilProxy) {
		t.Errorf("nil proxy error = %v, want ErrNilProxy", err)
	}
	if _, err := NewDomain("other").CreateInstanceFromProxy(c, p); !errors.Is(err, ErrForeignClass) {
		t.Errorf("foreign class error = %v, want ErrForeignClass", err)
	}
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

func TestToValue(t *testing.T) {
	d := NewDomain("test")
	c := &host.Collision{Impulse: 2}

	if d.ToValue(int32(3)) != int64(3) {
		t.Error("int32 not widened")
	}
	if d.ToValue(uint8(3)) != int64(3) {
		t.Error("uint8 not widened")
	}
	if d.ToValue(float32(0.5)) != 0.5 {
		t.Error("float32 not widened")
	}
	if d.ToValue([]byte("hi")) != "hi" {
		t.Error("[]byte not converted")
	}
	if d.ToValue(nil) != nil {
		t.Error("nil not preserved")
	}

	v := d.ToValue(c)
	f, ok := v.(*Foreign)
	if !ok || f.TypeName() != "*host.Collision" {
		t.Fatalf("ToValue(*Collision) = %#v", v)
	}
	if got, ok := As[*host.Collision](v); !ok || got != c {
		t.Error("As did not unwrap Foreign")
	}
	if _, ok := As[string](v); ok {
		t.Error("As returned wrong type")
	}
	if d.ToValue(v) != v {
		t.Error("Foreign re-wrapped")
	}
}

// ---------------------------------------------------------------------------
// Profiler
// ---------------------------------------------------------------------------

func TestProfilerHotThreshold(t *testing.T) {
	d := NewDomain("test")
	c, _ := d.DefineClass("Hot", host.BehaviourType)
	m := c.AddMethod("Update", Public, 0, nop)

	p := NewProfiler()
	p.HotThreshold = 3
	var hot []*Method
	p.OnHot = func(m *Method, _ *MethodProfile) { hot = append(hot, m) }

	for i := 0; i < 5; i++ {
		p.RecordInvocation(m, time.Millisecond, i == 0)
	}
	if len(hot) != 1 || hot[0] != m {
		t.Errorf("OnHot calls = %v, want one for %s", hot, m)
	}
	if p.HotMethodCount() != 1 {
		t.Errorf("HotMethodCount() = %d, want 1", p.HotMethodCount())
	}

	entries := p.Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries() = %v", entries)
	}
	e := entries[0]
	if e.Method != "Hot.Update" || e.Invocations != 5 || e.Failures != 1 || e.Total != 5*time.Millisecond || !e.Hot {
		t.Errorf("entry = %+v", e)
	}

	p.Reset()
	if len(p.Entries()) != 0 || p.HotMethodCount() != 0 {
		t.Error("Reset left data behind")
	}
}
