package anycodec

import (
	"errors"
	"reflect"
	"slices"
)

// Undefined is the absent value. It is distinct from nil, which encodes null.
type Undefined struct{}

// Symbol is a symbolic token. Only the description is serialized, so two
// decoded symbols with the same description are equal.
type Symbol struct {
	Description string
}

// Function is serialized function source text.
//
// Decoding yields a Function unless the Decoder was given a FunctionEvaluator.
type Function struct {
	Source string
}

// RawBuffer is an untyped byte buffer (tag 0).
type RawBuffer []byte

// DataView is a byte view without an element type (tag 1).
type DataView []byte

// ClampedBytes is a byte buffer whose writers clamp instead of wrap (tag 2).
type ClampedBytes []byte

// Object is a string-keyed record that keeps insertion order.
//
// The zero value is not usable; create objects with NewObject.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// ObjectOf creates an Object from alternating key, value arguments.
// It panics if a key is not a string or the argument count is odd.
func ObjectOf(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic("anycodec: ObjectOf needs key/value pairs")
	}

	o := NewObject()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic("anycodec: ObjectOf keys must be strings")
		}
		o.Set(k, kv[i+1])
	}

	return o
}

// Set stores v under k. A new key is appended to the key order.
func (o *Object) Set(k string, v any) {
	if _, ok := o.values[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.values[k] = v
}

// Get returns the value stored under k.
func (o *Object) Get(k string) (any, bool) {
	v, ok := o.values[k]
	return v, ok
}

// Has reports whether k is present.
func (o *Object) Has(k string) bool {
	_, ok := o.values[k]
	return ok
}

// Delete removes k.
func (o *Object) Delete(k string) {
	if _, ok := o.values[k]; !ok {
		return
	}
	delete(o.values, k)
	o.keys = slices.DeleteFunc(o.keys, func(s string) bool { return s == k })
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// Range calls fn for every entry in insertion order until fn returns false.
func (o *Object) Range(fn func(k string, v any) bool) {
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// ToMap returns a shallow copy of the entries.
func (o *Object) ToMap() map[string]any {
	m := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		m[k] = o.values[k]
	}

	return m
}

// Equal reports whether both objects hold deeply equal entries in the same order.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}

	return slices.Equal(o.keys, other.keys) && reflect.DeepEqual(o.values, other.values)
}

// Map is an ordered map with arbitrary keys.
//
// Comparable keys are matched by value, slices and maps by identity.
type Map struct {
	keys   []any
	values []any
	index  map[any]int
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[any]int)}
}

// Set stores v under k, keeping the position of an existing key.
//
// Keys without an identity, such as empty slices, always add a new entry.
func (m *Map) Set(k, v any) {
	hk, stable := insertKey(k)
	if i, ok := m.index[hk]; ok && stable {
		m.values[i] = v
		return
	}
	m.index[hk] = len(m.keys)
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
}

// Get returns the value stored under k.
func (m *Map) Get(k any) (any, bool) {
	hk, ok := hashKey(k)
	if !ok {
		return nil, false
	}
	i, ok := m.index[hk]
	if !ok {
		return nil, false
	}

	return m.values[i], true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []any {
	return slices.Clone(m.keys)
}

// Range calls fn for every entry in insertion order until fn returns false.
func (m *Map) Range(fn func(k, v any) bool) {
	for i, k := range m.keys {
		if !fn(k, m.values[i]) {
			return
		}
	}
}

// Equal reports whether both maps hold deeply equal entries in the same order.
func (m *Map) Equal(other *Map) bool {
	if m == nil || other == nil {
		return m == other
	}

	return reflect.DeepEqual(m.keys, other.keys) && reflect.DeepEqual(m.values, other.values)
}

// Set is an ordered collection of unique values.
type Set struct {
	values []any
	index  map[any]struct{}
}

// NewSet creates a Set holding values.
func NewSet(values ...any) *Set {
	s := &Set{index: make(map[any]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}

	return s
}

// Add inserts v unless it is already present. Values without an identity,
// such as empty slices, are always added.
func (s *Set) Add(v any) {
	hk, stable := insertKey(v)
	if _, ok := s.index[hk]; ok && stable {
		return
	}
	s.index[hk] = struct{}{}
	s.values = append(s.values, v)
}

// Has reports whether v is present.
func (s *Set) Has(v any) bool {
	hk, ok := hashKey(v)
	if !ok {
		return false
	}
	_, ok = s.index[hk]

	return ok
}

// Len returns the number of values.
func (s *Set) Len() int {
	return len(s.values)
}

// Values returns the values in insertion order.
func (s *Set) Values() []any {
	return slices.Clone(s.values)
}

// Equal reports whether both sets hold deeply equal values in the same order.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}

	return reflect.DeepEqual(s.values, other.values)
}

// ErrorValue is a serialized error: name, message, stack, an optional cause
// and any extra fields.
type ErrorValue struct {
	Name    string
	Message string
	Stack   string
	Cause   any
	// Extra holds fields beyond name, message, stack and cause. May be nil.
	Extra *Object
	// DOMException marks errors that originated as DOM exceptions.
	DOMException bool
}

// FromError converts err into an ErrorValue. The wrapped error, if any, becomes the cause.
func FromError(err error) *ErrorValue {
	if ev, ok := err.(*ErrorValue); ok { //nolint:errorlint
		return ev
	}

	ev := &ErrorValue{Name: "Error", Message: err.Error()}
	if cause := errors.Unwrap(err); cause != nil {
		ev.Cause = FromError(cause)
	}

	return ev
}

func (e *ErrorValue) Error() string {
	if e.Name == "" {
		return e.Message
	}

	return e.Name + ": " + e.Message
}

// Unwrap returns the cause when it is an error.
func (e *ErrorValue) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}

	return nil
}

// properties returns the generic object an error is serialized as.
func (e *ErrorValue) properties() *Object {
	o := NewObject()
	o.Set("name", e.Name)
	o.Set("message", e.Message)
	o.Set("stack", e.Stack)
	if e.Extra != nil {
		e.Extra.Range(func(k string, v any) bool {
			if !isErrorProperty(k) {
				o.Set(k, v)
			}

			return true
		})
	}
	if e.Cause != nil {
		o.Set("cause", e.Cause)
	}

	return o
}

func isErrorProperty(k string) bool {
	return k == "name" || k == "message" || k == "stack" || k == "cause"
}

// unkeyed stands in for a value that has neither a comparable form nor an
// identity, such as an empty slice. Each instance is a distinct key, so such
// values never match each other. It is not zero sized because pointers to
// distinct zero-size values may compare equal.
type unkeyed struct{ _ byte }

// hashKey maps a Map key or Set value to something usable as a Go map key.
// ok is false for values without a stable key; those are never found again.
func hashKey(v any) (key any, ok bool) {
	if v == nil {
		return nil, true
	}
	if reflect.TypeOf(v).Comparable() {
		return v, true
	}
	if id, ok := identityOf(v); ok {
		return id, true
	}

	return nil, false
}

// insertKey is hashKey for insertions: a value without a stable key gets a
// fresh one.
func insertKey(v any) (key any, stable bool) {
	if key, ok := hashKey(v); ok {
		return key, true
	}

	return new(unkeyed), false
}

// identity is the reference identity of a slice, map or pointer.
type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// identityOf returns the identity of reference values. Empty slices and nil
// references have none.
func identityOf(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}

		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}

		return identity{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}, true
	default:
		return identity{}, false
	}
}
