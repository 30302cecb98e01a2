package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Weights is an insertion-ordered map from a key to an amount or a percentage.
// Iteration follows insertion order, which keeps every derived sum and report
// deterministic. The zero value is an empty, ready to use map.
type Weights[K ~string] struct {
	keys   []K
	values map[K]float64
}

// WeightsOf builds Weights ordered by keys. Keys missing from values are stored with 0.
func WeightsOf[K ~string](keys []K, values map[K]float64) Weights[K] {
	var w Weights[K]
	for _, k := range keys {
		w.Set(k, values[k])
	}
	return w
}

func (w Weights[K]) Len() int { return len(w.keys) }

// IsZero reports whether w has no keys. It lets yaml omitempty skip empty weights.
func (w Weights[K]) IsZero() bool { return len(w.keys) == 0 }

// Keys returns a copy of the keys in insertion order.
func (w Weights[K]) Keys() []K { return append([]K(nil), w.keys...) }

// Get returns the value for k, 0 when absent.
func (w Weights[K]) Get(k K) float64 { return w.values[k] }

// Has reports whether k is present, even with a zero value.
func (w Weights[K]) Has(k K) bool {
	_, ok := w.values[k]
	return ok
}

// Set stores v for k, appending k when new.
func (w *Weights[K]) Set(k K, v float64) {
	if w.values == nil {
		w.values = make(map[K]float64)
	}
	if _, ok := w.values[k]; !ok {
		w.keys = append(w.keys, k)
	}
	w.values[k] = v
}

// Add accumulates v into k.
func (w *Weights[K]) Add(k K, v float64) { w.Set(k, w.Get(k)+v) }

// All iterates keys and values in insertion order.
func (w Weights[K]) All() iter.Seq2[K, float64] {
	return func(yield func(K, float64) bool) {
		for _, k := range w.keys {
			if !yield(k, w.values[k]) {
				return
			}
		}
	}
}

// Values returns the values in insertion order.
func (w Weights[K]) Values() []float64 {
	out := make([]float64, len(w.keys))
	for i, k := range w.keys {
		out[i] = w.values[k]
	}
	return out
}

// Sum adds all values in insertion order.
func (w Weights[K]) Sum() float64 { return floats.Sum(w.Values()) }

// Clone returns an independent copy.
func (w Weights[K]) Clone() Weights[K] {
	var c Weights[K]
	for k, v := range w.All() {
		c.Set(k, v)
	}
	return c
}

// Map returns the values as a plain map.
func (w Weights[K]) Map() map[K]float64 {
	out := make(map[K]float64, len(w.keys))
	for k, v := range w.All() {
		out[k] = v
	}
	return out
}

func (w Weights[K]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range w.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(w.values[k], 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (w *Weights[K]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*w = Weights[K]{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("weights: expected object, got %v", tok)
	}
	var out Weights[K]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("weights: value of %q: %w", key, err)
		}
		out.Set(K(key), v)
	}
	*w = out
	return nil
}

func (w Weights[K]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for k, v := range w.All() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(k)},
			&yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v, 'f', -1, 64)},
		)
	}
	return node, nil
}

func (w *Weights[K]) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*w = Weights[K]{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	var out Weights[K]
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var v float64
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("line %d: value of %q: %w", val.Line, key.Value, err)
		}
		out.Set(K(key.Value), v)
	}
	*w = out
	return nil
}
