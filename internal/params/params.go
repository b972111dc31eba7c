// Package params implements the read-only key/value bag handed to every
// graph-mutation operation. Values ride on cty so plan files, manifests, and
// native Go callers all feed the same typed representation.
package params

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/fragmesh/internal/fmerr"
)

// Params is an immutable parameter bag. The zero value is an empty bag.
// Callers own it; invoked operations only read it.
type Params struct {
	vals map[string]cty.Value
}

// New builds a bag from cty values. The map is copied, so later caller
// mutations do not leak in.
func New(vals map[string]cty.Value) Params {
	copied := make(map[string]cty.Value, len(vals))
	for k, v := range vals {
		copied[k] = v
	}
	return Params{vals: copied}
}

// FromNative builds a bag from plain Go values (string, bool, numeric,
// homogeneous slices and maps).
func FromNative(m map[string]any) (Params, error) {
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return Params{}, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("parameter %q has an unsupported type", k))
		}
		cv, err := gocty.ToCtyValue(v, ty)
		if err != nil {
			return Params{}, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("parameter %q cannot be converted", k))
		}
		vals[k] = cv
	}
	return Params{vals: vals}, nil
}

// FromObject builds a bag from a cty object or map value, which is how plan
// files deliver a `params = { ... }` attribute.
func FromObject(v cty.Value) (Params, error) {
	if v.IsNull() {
		return Params{}, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return Params{}, fmerr.Newf(fmerr.KindInvalidArgument, "params must be an object, got %s", ty.FriendlyName())
	}
	return New(v.AsValueMap()), nil
}

// Len reports the number of parameters.
func (p Params) Len() int { return len(p.vals) }

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.vals[key]
	return ok
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.vals))
	for k := range p.vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the raw cty value for key.
func (p Params) Value(key string) (cty.Value, bool) {
	v, ok := p.vals[key]
	return v, ok
}

// String returns the value of key converted to a string.
func (p Params) String(key string) (string, error) {
	var out string
	if err := p.get(key, cty.String, &out); err != nil {
		return "", err
	}
	return out, nil
}

// StringOr returns the value of key, or def when the key is absent.
func (p Params) StringOr(key, def string) string {
	if !p.Has(key) {
		return def
	}
	v, err := p.String(key)
	if err != nil {
		return def
	}
	return v
}

// Int64 returns the value of key converted to an int64.
func (p Params) Int64(key string) (int64, error) {
	var out int64
	if err := p.get(key, cty.Number, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// Int64Or returns the value of key, or def when the key is absent.
func (p Params) Int64Or(key string, def int64) int64 {
	if !p.Has(key) {
		return def
	}
	v, err := p.Int64(key)
	if err != nil {
		return def
	}
	return v
}

// Bool returns the value of key converted to a bool.
func (p Params) Bool(key string) (bool, error) {
	var out bool
	if err := p.get(key, cty.Bool, &out); err != nil {
		return false, err
	}
	return out, nil
}

// BoolOr returns the value of key, or def when the key is absent.
func (p Params) BoolOr(key string, def bool) bool {
	if !p.Has(key) {
		return def
	}
	v, err := p.Bool(key)
	if err != nil {
		return def
	}
	return v
}

// Fingerprint returns a deterministic rendering of the whole bag. Two bags
// built from semantically equal values produce the same fingerprint, which is
// what the group rendezvous check compares across ranks.
func (p Params) Fingerprint() string {
	var b strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.vals[k].GoString())
	}
	return b.String()
}

// Float64 returns the value of key converted to a float64.
func (p Params) Float64(key string) (float64, error) {
	var out float64
	if err := p.get(key, cty.Number, &out); err != nil {
		return 0, err
	}
	return out, nil
}

func (p Params) get(key string, want cty.Type, out any) error {
	v, ok := p.vals[key]
	if !ok {
		return fmerr.Newf(fmerr.KindInvalidArgument, "missing parameter %q", key)
	}
	conv, err := convert.Convert(v, want)
	if err != nil {
		return fmerr.Wrap(fmerr.KindInvalidArgument, err,
			fmt.Sprintf("parameter %q is not convertible to %s", key, want.FriendlyName()))
	}
	if err := gocty.FromCtyValue(conv, out); err != nil {
		return fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("parameter %q", key))
	}
	return nil
}
