package resource

import (
	"reflect"
	"sort"
	"strings"
)

type Value = any

// AttributeSeparator is the character that the registry API uses inside
// attribute names of GET responses but omits in some request payloads
// (`tag_expiration_s` versus `tagexpirations`).
const AttributeSeparator = "_"

// CanonicalName returns the separator-free spelling of an attribute name.
func CanonicalName(name string) string {
	return strings.ReplaceAll(name, AttributeSeparator, "")
}

// Object is the observed state of one remote entity. It is built fresh from
// each GET response and never mutated afterwards.
type Object struct {
	fields    map[string]any
	canonical map[string]string
}

// NewObject indexes fields by canonical attribute name. When two raw keys
// collapse onto the same canonical name, the spelling that contains the
// separator owns the canonical slot.
func NewObject(fields map[string]any) *Object {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}

	keys := make([]string, 0, len(copied))
	for key := range copied {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	canonical := make(map[string]string, len(keys))
	for _, key := range keys {
		name := CanonicalName(key)
		owner, taken := canonical[name]
		if taken && strings.Contains(owner, AttributeSeparator) && !strings.Contains(key, AttributeSeparator) {
			continue
		}
		canonical[name] = key
	}

	return &Object{fields: copied, canonical: canonical}
}

// Get returns the value stored under name, accepting either spelling.
func (o *Object) Get(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	if value, found := o.fields[name]; found {
		return value, true
	}
	key, found := o.canonical[CanonicalName(name)]
	if !found {
		return nil, false
	}
	return o.fields[key], true
}

func (o *Object) String(name string) string {
	value, _ := o.Get(name)
	text, _ := value.(string)
	return text
}

func (o *Object) Bool(name string) bool {
	value, _ := o.Get(name)
	flag, _ := value.(bool)
	return flag
}

func (o *Object) Int(name string) (int64, bool) {
	value, _ := o.Get(name)
	number, ok := value.(int64)
	return number, ok
}

func (o *Object) Map(name string) map[string]any {
	value, _ := o.Get(name)
	mapping, _ := value.(map[string]any)
	return mapping
}

func (o *Object) List(name string) []any {
	value, _ := o.Get(name)
	items, _ := value.([]any)
	return items
}

func (o *Object) Has(name string) bool {
	_, found := o.Get(name)
	return found
}

// Fields returns a shallow copy of the raw attributes.
func (o *Object) Fields() map[string]any {
	if o == nil {
		return nil
	}
	copied := make(map[string]any, len(o.fields))
	for key, value := range o.fields {
		copied[key] = value
	}
	return copied
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.fields)
}

// Equal reports whether the stored value for name matches want after
// normalisation. A missing attribute equals nil.
func (o *Object) Equal(name string, want any) bool {
	got, _ := o.Get(name)
	return ValuesEqual(got, want)
}

// ValuesEqual compares two values in the normalised JSON value space.
func ValuesEqual(left any, right any) bool {
	normalizedLeft, err := Normalize(left)
	if err != nil {
		return false
	}
	normalizedRight, err := Normalize(right)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(normalizedLeft, normalizedRight)
}
