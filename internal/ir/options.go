package ir

import (
	"iter"

	"github.com/tidwall/btree"
	"golang.org/x/text/cases"
)

// Options is a string map whose keys compare case-insensitively.
//
// Entries keep the literal key casing of their last Set. Iteration and
// encoding order is by case-folded key, so two Options holding the same
// entries always encode identically.
type Options struct {
	tree btree.Map[string, option]
}

type option struct {
	key   string
	value string
}

// NewOptions builds Options from alternating key, value arguments.
// A trailing key without a value is ignored.
func NewOptions(kv ...string) *Options {
	o := &Options{}
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i], kv[i+1])
	}
	return o
}

// foldKey returns the case-folded form used for comparison. A Caser is
// stateful, so a fresh one is used per call.
func foldKey(key string) string {
	return cases.Fold().String(key)
}

// Set stores value under key, replacing any entry whose key differs only
// in case.
func (o *Options) Set(key, value string) {
	o.tree.Set(foldKey(key), option{key: key, value: value})
}

// Get returns the value stored under key, compared case-insensitively.
func (o *Options) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	opt, ok := o.tree.Get(foldKey(key))
	return opt.value, ok
}

// Delete removes the entry for key and reports whether one existed.
func (o *Options) Delete(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.tree.Delete(foldKey(key))
	return ok
}

// Len returns the number of entries.
func (o *Options) Len() int {
	if o == nil {
		return 0
	}
	return o.tree.Len()
}

// All yields entries with their literal keys, ordered by folded key.
func (o *Options) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if o == nil {
			return
		}
		o.tree.Scan(func(_ string, opt option) bool {
			return yield(opt.key, opt.value)
		})
	}
}

// Map returns a copy of the entries keyed by their literal keys.
func (o *Options) Map() map[string]string {
	m := make(map[string]string, o.Len())
	for k, v := range o.All() {
		m[k] = v
	}
	return m
}
