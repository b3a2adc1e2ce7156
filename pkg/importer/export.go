package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
)

var (
	// ErrInvalidExport is the parent of every annotation export contract violation.
	ErrInvalidExport = errors.New("invalid annotation export")

	// ErrMultipleProjects is returned for exports holding more than one project.
	ErrMultipleProjects = fmt.Errorf("%w: cannot read exports with more than 1 project", ErrInvalidExport)

	// ErrNoProjects is returned for exports without a project.
	ErrNoProjects = fmt.Errorf("%w: export has no project", ErrInvalidExport)
)

// Export is the JSON document downloaded from the annotation tool.
type Export struct {
	Projects []ExportProject `json:"projects"`
}

// ExportProject holds the annotated documents of one project.
type ExportProject struct {
	Name      string           `json:"name,omitempty"`
	Documents []ExportDocument `json:"documents"`
}

// ExportDocument is one annotated document.
type ExportDocument struct {
	Name        string             `json:"name"`
	Text        string             `json:"text"`
	Annotations []ExportAnnotation `json:"annotations"`
}

// ExportAnnotation is one annotation as exported. Deleted annotations are
// kept in the export and skipped on import.
type ExportAnnotation struct {
	Value    string          `json:"value"`
	Start    int             `json:"start"`
	End      int             `json:"end"`
	CUI      string          `json:"cui"`
	Deleted  bool            `json:"deleted"`
	MetaAnns MetaAnnotations `json:"meta_anns"`
}

// MetaAnnotation is one qualifier of an exported annotation.
type MetaAnnotation struct {
	Axis  string `json:"-"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MetaAnnotations is the meta_anns object, kept in document order.
type MetaAnnotations []MetaAnnotation

// UnmarshalJSON decodes {"axis": {"name": ..., "value": ...}, ...} preserving key order.
func (m *MetaAnnotations) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: meta_anns must be an object", ErrInvalidExport)
	}

	var out MetaAnnotations
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var meta MetaAnnotation
		if err := dec.Decode(&meta); err != nil {
			return fmt.Errorf("meta_anns %q: %w", key, err)
		}
		meta.Axis = key
		out = append(out, meta)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = out
	return nil
}

// MarshalJSON writes meta_anns back as an object keyed by axis.
func (m MetaAnnotations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, meta := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(meta.Axis)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseExport decodes an annotation export.
func ParseExport(r io.Reader) (*Export, error) {
	var data Export
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return &data, nil
}

// LoadExport reads and decodes an annotation export file.
func LoadExport(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseExport(f)
}

// ExportOptions controls FromAnnotationExport.
type ExportOptions struct {
	// StripSpans trims DefaultCutset (or Cutset) off every annotation,
	// cleaning up accidental over-annotation.
	StripSpans bool
	Cutset     string

	// DefaultQualifiers, when set, decides which values are default.
	// Otherwise the majority value per qualifier is assumed default.
	DefaultQualifiers map[string]string

	Notifier dataset.Notifier
}

// DefaultExportOptions strips spans and infers default qualifiers.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{StripSpans: true}
}

// FromAnnotationExport converts a single-project annotation export.
func FromAnnotationExport(data *Export, opts ExportOptions) (*dataset.Dataset, error) {
	switch {
	case data == nil || len(data.Projects) == 0:
		return nil, ErrNoProjects
	case len(data.Projects) > 1:
		return nil, fmt.Errorf("%w (got %d)", ErrMultipleProjects, len(data.Projects))
	}

	title := newTitler()
	project := data.Projects[0]
	docs := make([]*annotation.Document, 0, len(project.Documents))

	for _, doc := range project.Documents {
		annotations := make([]*annotation.Annotation, 0, len(doc.Annotations))

		for _, exported := range doc.Annotations {
			if exported.Deleted {
				continue
			}

			qualifiers := make([]annotation.Qualifier, 0, len(exported.MetaAnns))
			for _, meta := range exported.MetaAnns {
				q := annotation.Qualifier{
					Name:  title(meta.Name),
					Value: title(meta.Value),
				}
				if opts.DefaultQualifiers != nil {
					def, ok := opts.DefaultQualifiers[q.Name]
					if !ok {
						return nil, fmt.Errorf("document %q: %w: %q", doc.Name, dataset.ErrMissingDefault, q.Name)
					}
					q.SetDefault(def == q.Value)
				}
				qualifiers = append(qualifiers, q)
			}

			ann := &annotation.Annotation{
				Text:       exported.Value,
				Start:      exported.Start,
				End:        exported.End,
				Label:      exported.CUI,
				Qualifiers: qualifiers,
			}
			if err := ann.Validate(); err != nil {
				return nil, fmt.Errorf("document %q: %w", doc.Name, err)
			}

			if opts.StripSpans {
				ann.Trim(opts.Cutset)
			}

			annotations = append(annotations, ann)
		}

		docs = append(docs, &annotation.Document{
			Identifier:  doc.Name,
			Text:        doc.Text,
			Annotations: annotations,
		})
	}

	if opts.DefaultQualifiers == nil {
		return dataset.New(docs, dataset.WithNotifier(opts.Notifier)), nil
	}

	// Supplied defaults replace whatever New resolves, so its notices do not apply.
	ds := dataset.New(docs)
	dataset.WithNotifier(opts.Notifier)(ds)

	// Keep the caller's mapping, including names absent from this export.
	if err := ds.SetDefaultQualifiers(opts.DefaultQualifiers); err != nil {
		return nil, err
	}

	return ds, nil
}
