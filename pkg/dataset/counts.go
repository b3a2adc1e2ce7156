package dataset

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxEntries is the number of entries SpanCounts and LabelCounts keep by default.
	DefaultMaxEntries = 25

	// AllEntries disables truncation of a frequency table.
	AllEntries = -1
)

// Transform is applied to a span text or label before counting.
type Transform func(string) string

// Count is one row of a frequency table.
type Count struct {
	Value string `json:"value" yaml:"value"`
	N     int    `json:"n" yaml:"n"`
}

// Counts is an ordered frequency table. It serializes as a mapping that
// keeps the row order.
type Counts []Count

// Map returns the table as an unordered map.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, len(c))
	for _, row := range c {
		m[row.Value] = row.N
	}
	return m
}

// Get returns the count of value.
func (c Counts) Get(value string) (int, bool) {
	for _, row := range c {
		if row.Value == value {
			return row.N, true
		}
	}
	return 0, false
}

// Values returns the counted values in table order.
func (c Counts) Values() []string {
	values := make([]string, len(c))
	for i, row := range c {
		values[i] = row.Value
	}
	return values
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	total := 0
	for _, row := range c {
		total += row.N
	}
	return total
}

// MarshalJSON writes {"value": n, ...} in table order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, row := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(row.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(row.N))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes a mapping node in table order.
func (c Counts) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, row := range c {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: row.Value},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(row.N)},
		)
	}

	return node, nil
}

// counter accumulates a frequency table in first-seen order.
type counter struct {
	index  map[string]int
	counts Counts
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(value string) {
	if i, ok := c.index[value]; ok {
		c.counts[i].N++
		return
	}

	c.index[value] = len(c.counts)
	c.counts = append(c.counts, Count{Value: value, N: 1})
}

// table returns the counts in first-seen order.
func (c *counter) table() Counts {
	out := make(Counts, len(c.counts))
	copy(out, c.counts)
	return out
}

// mostCommon returns the n most frequent values, descending by count.
// Equal counts keep first-seen order. A negative n returns all of them.
func (c *counter) mostCommon(n int) Counts {
	out := c.table()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].N > out[j].N
	})

	if n >= 0 && n < len(out) {
		out = out[:n]
	}

	return out
}
