package rowmap

import (
	"strconv"

	"github.com/ohler55/ojg/jp"
)

// object is a JSON object that keeps its keys in document order, so
// wildcard and descent paths match in the order the source lists them.
type object struct {
	keys   []string
	values map[string]any
}

func newObject() *object {
	return &object{values: make(map[string]any)}
}

func (o *object) ValueForKey(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// SetValueForKey keeps the first position of a repeated key.
func (o *object) SetValueForKey(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *object) RemoveValueForKey(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *object) Keys() []string {
	return o.keys
}

var _ jp.Keyed = (*object)(nil)

type frame struct {
	obj *object
	arr []any
	key string
}

// documentBuilder is an oj.TokenHandler assembling objects and []any arrays.
type documentBuilder struct {
	stack []*frame
	root  any
	roots int
}

func (b *documentBuilder) add(v any) {
	if len(b.stack) == 0 {
		b.root = v
		b.roots++
		return
	}
	top := b.stack[len(b.stack)-1]
	if top.obj != nil {
		top.obj.SetValueForKey(top.key, v)
		return
	}
	top.arr = append(top.arr, v)
}

func (b *documentBuilder) pop() *frame {
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return top
}

func (b *documentBuilder) Null() { b.add(nil) }
func (b *documentBuilder) Bool(v bool) { b.add(v) }
func (b *documentBuilder) Int(v int64) { b.add(v) }
func (b *documentBuilder) Float(v float64) { b.add(v) }
func (b *documentBuilder) String(v string) { b.add(v) }
func (b *documentBuilder) Key(k string) { b.stack[len(b.stack)-1].key = k }
func (b *documentBuilder) ObjectStart() { b.stack = append(b.stack, &frame{obj: newObject()}) }
func (b *documentBuilder) ObjectEnd() { b.add(b.pop().obj) }
func (b *documentBuilder) ArrayStart() { b.stack = append(b.stack, &frame{arr: []any{}}) }
func (b *documentBuilder) ArrayEnd() { b.add(b.pop().arr) }

// Number receives numbers too large for int64 and float64.
func (b *documentBuilder) Number(v string) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		b.add(f)
		return
	}
	b.add(v)
}
