// Package importer builds datasets from NLP pipeline output and from
// annotation tool exports.
package importer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxLineBytes       = 1024 * 1024
	initialBufferBytes = 64 * 1024
)

// ErrInvalidPipelineOutput is returned for malformed pipeline JSON lines.
var ErrInvalidPipelineOutput = errors.New("invalid pipeline output")

// PipelineQualifier is a qualifier as emitted by the pipeline.
type PipelineQualifier struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	IsDefault bool   `json:"is_default"`
}

// PipelineEntity is a recognized entity span.
type PipelineEntity struct {
	Text       string              `json:"text"`
	Start      int                 `json:"start"`
	End        int                 `json:"end"`
	Label      string              `json:"label"`
	Qualifiers []PipelineQualifier `json:"qualifiers"`
}

// PipelineDoc is one processed document of the NLP pipeline.
type PipelineDoc interface {
	Text() string
	Entities() []PipelineEntity
}

// JSONPipelineDoc is a PipelineDoc read from JSON lines.
type JSONPipelineDoc struct {
	ID      string           `json:"id,omitempty"`
	Content string           `json:"text"`
	Ents    []PipelineEntity `json:"ents"`
}

// Text returns the document text.
func (d *JSONPipelineDoc) Text() string { return d.Content }

// Entities returns the entity spans in document order.
func (d *JSONPipelineDoc) Entities() []PipelineEntity { return d.Ents }

// ReadPipelineJSONL reads one JSONPipelineDoc per line. ids is nil unless
// every document carries an id.
func ReadPipelineJSONL(r io.Reader) ([]PipelineDoc, []string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferBytes), maxLineBytes)

	var (
		docs    []PipelineDoc
		ids     []string
		missing int
		lineNo  int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		doc := &JSONPipelineDoc{}
		if err := json.Unmarshal([]byte(line), doc); err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPipelineOutput, lineNo, err)
		}

		if doc.ID == "" {
			missing++
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read pipeline output: %w", err)
	}

	switch missing {
	case 0:
		return docs, ids, nil
	case len(docs):
		return docs, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d of %d documents have no id", ErrInvalidPipelineOutput, missing, len(docs))
	}
}

// FromPipelineOutput converts pipeline documents. Without ids documents are
// numbered from "0". With ids, documents pair with ids positionally and
// surplus documents are dropped.
func FromPipelineOutput(docs []PipelineDoc, ids []string, opts ...dataset.Option) (*dataset.Dataset, error) {
	if ids == nil {
		ids = make([]string, len(docs))
		for i := range ids {
			ids[i] = strconv.Itoa(i)
		}
	}

	n := min(len(docs), len(ids))
	title := newTitler()
	out := make([]*annotation.Document, 0, n)

	for i := 0; i < n; i++ {
		doc := docs[i]
		entities := doc.Entities()
		annotations := make([]*annotation.Annotation, 0, len(entities))

		for _, ent := range entities {
			qualifiers := make([]annotation.Qualifier, 0, len(ent.Qualifiers))
			for _, pq := range ent.Qualifiers {
				q := annotation.Qualifier{Name: title(pq.Name), Value: title(pq.Value)}
				q.SetDefault(pq.IsDefault)
				qualifiers = append(qualifiers, q)
			}

			ann := &annotation.Annotation{
				Text:       ent.Text,
				Start:      ent.Start,
				End:        ent.End,
				Label:      ent.Label,
				Qualifiers: qualifiers,
			}
			if err := ann.Validate(); err != nil {
				return nil, fmt.Errorf("document %q: %w", ids[i], err)
			}
			annotations = append(annotations, ann)
		}

		out = append(out, &annotation.Document{
			Identifier:  ids[i],
			Text:        doc.Text(),
			Annotations: annotations,
		})
	}

	return dataset.New(out, opts...), nil
}

// newTitler returns a title-casing function. A cases.Caser keeps state, so
// each import gets its own.
func newTitler() func(string) string {
	caser := cases.Title(language.Und)
	return caser.String
}

// NormalizeQualifiers title-cases the names and values of a default
// qualifier mapping the way imported qualifiers are cased, so defaults from
// config files or flags match imported names. A nil mapping stays nil.
func NormalizeQualifiers(defaults map[string]string) map[string]string {
	if defaults == nil {
		return nil
	}

	title := newTitler()
	out := make(map[string]string, len(defaults))
	for name, value := range defaults {
		out[title(name)] = title(value)
	}
	return out
}
