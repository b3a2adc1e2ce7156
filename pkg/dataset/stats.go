package dataset

// SpanCounts counts annotation texts, after transform, keeping the
// maxEntries most frequent. Pass AllEntries to keep every text.
func (d *Dataset) SpanCounts(maxEntries int, transform Transform) Counts {
	c := newCounter()
	for _, doc := range d.Docs {
		for _, ann := range doc.Annotations {
			c.add(apply(transform, ann.Text))
		}
	}
	return c.mostCommon(maxEntries)
}

// LabelCounts counts annotation labels, after transform, keeping the
// maxEntries most frequent. Pass AllEntries to keep every label.
func (d *Dataset) LabelCounts(maxEntries int, transform Transform) Counts {
	c := newCounter()
	for _, doc := range d.Docs {
		for _, ann := range doc.Annotations {
			c.add(apply(transform, ann.Label))
		}
	}
	return c.mostCommon(maxEntries)
}

// QualifierCounts maps each qualifier name to the frequencies of its
// values, e.g. {"Negation": {"Affirmed": 34, "Negated": 12}}. Values are
// listed in first-seen order.
func (d *Dataset) QualifierCounts() map[string]Counts {
	counters := make(map[string]*counter)

	for _, doc := range d.Docs {
		for _, ann := range doc.Annotations {
			for _, q := range ann.Qualifiers {
				c, ok := counters[q.Name]
				if !ok {
					c = newCounter()
					counters[q.Name] = c
				}
				c.add(q.Value)
			}
		}
	}

	out := make(map[string]Counts, len(counters))
	for name, c := range counters {
		out[name] = c.table()
	}
	return out
}

func apply(t Transform, s string) string {
	if t == nil {
		return s
	}
	return t(s)
}

// StatsOptions tunes Stats. Zero MaxSpans and MaxLabels mean DefaultMaxEntries.
type StatsOptions struct {
	MaxSpans      int
	SpanTransform Transform

	MaxLabels      int
	LabelTransform Transform
}

// Stats summarizes a dataset.
type Stats struct {
	NumDocs         int               `json:"num_docs" yaml:"num_docs"`
	NumAnnotations  int               `json:"num_annotations" yaml:"num_annotations"`
	SpanCounts      Counts            `json:"span_counts" yaml:"span_counts"`
	LabelCounts     Counts            `json:"label_counts" yaml:"label_counts"`
	QualifierCounts map[string]Counts `json:"qualifier_counts" yaml:"qualifier_counts"`
}

// statistic computes one Stats field. Each one reads only the options it owns.
type statistic struct {
	name    string
	compute func(d *Dataset, opts StatsOptions, out *Stats)
}

var statistics = []statistic{
	{"num_docs", func(d *Dataset, _ StatsOptions, out *Stats) {
		out.NumDocs = d.NumDocs()
	}},
	{"num_annotations", func(d *Dataset, _ StatsOptions, out *Stats) {
		out.NumAnnotations = d.NumAnnotations()
	}},
	{"span_counts", func(d *Dataset, opts StatsOptions, out *Stats) {
		out.SpanCounts = d.SpanCounts(orDefault(opts.MaxSpans), opts.SpanTransform)
	}},
	{"label_counts", func(d *Dataset, opts StatsOptions, out *Stats) {
		out.LabelCounts = d.LabelCounts(orDefault(opts.MaxLabels), opts.LabelTransform)
	}},
	{"qualifier_counts", func(d *Dataset, _ StatsOptions, out *Stats) {
		out.QualifierCounts = d.QualifierCounts()
	}},
}

// StatNames lists the statistics Stats computes, in order.
func StatNames() []string {
	names := make([]string, len(statistics))
	for i, s := range statistics {
		names[i] = s.name
	}
	return names
}

// Stats computes every statistic of the dataset.
func (d *Dataset) Stats(opts StatsOptions) Stats {
	var out Stats
	for _, s := range statistics {
		s.compute(d, opts, &out)
	}
	return out
}

func orDefault(maxEntries int) int {
	if maxEntries == 0 {
		return DefaultMaxEntries
	}
	return maxEntries
}
