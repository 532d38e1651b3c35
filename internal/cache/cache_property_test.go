//go:build property

package cache

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type write struct {
	Key    string
	Value  string
	Remove bool
}

// TestObjectCacheProperties validates the dirty bit against a plain map.
func TestObjectCacheProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	writeGen := gopter.CombineGens(
		gen.OneConstOf("/static/a.css", "/static/b.js", "/static/c.png"),
		gen.OneConstOf("abc", "def"),
		gen.Weighted([]gen.WeightedGen{{Weight: 4, Gen: gen.Const(false)}, {Weight: 1, Gen: gen.Const(true)}}),
	).Map(func(v []interface{}) write {
		return write{Key: v[0].(string), Value: v[1].(string), Remove: v[2].(bool)}
	})

	properties.Property("dirty exactly when a write changed a value", prop.ForAll(
		func(initial, writes []write) bool {
			c := NewObjectCache("fingerprints", DefaultObjectCacheOptions)
			model := map[string]string{}
			for _, w := range initial {
				c.Add(w.Key, w.Value)
				model[w.Key] = w.Value
			}
			c.MarkClean()

			changed := false
			for _, w := range writes {
				old, had := model[w.Key]
				var reported, want bool
				if w.Remove {
					reported, want = c.Remove(w.Key), had
					delete(model, w.Key)
				} else {
					reported, want = c.Add(w.Key, w.Value), !had || old != w.Value
					model[w.Key] = w.Value
				}
				if reported != want {
					return false
				}
				changed = changed || want
			}
			return c.IsDirty() == changed && c.Len() == len(model)
		},
		gen.SliceOf(writeGen), gen.SliceOf(writeGen),
	))

	properties.Property("export matches the last write per key", prop.ForAll(
		func(writes []write) bool {
			c := NewObjectCache("fingerprints", DefaultObjectCacheOptions)
			model := map[string]string{}
			for _, w := range writes {
				if w.Remove {
					c.Remove(w.Key)
					delete(model, w.Key)
					continue
				}
				c.Add(w.Key, w.Value)
				model[w.Key] = w.Value
			}
			exported := c.Export()
			if len(exported) != len(model) {
				return false
			}
			for k, v := range model {
				if exported[k] != v {
					return false
				}
			}
			return true
		},
		gen.SliceOf(writeGen),
	))

	properties.TestingRun(t)
}
