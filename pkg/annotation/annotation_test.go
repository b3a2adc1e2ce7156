package annotation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnnotation_MatchRecord(t *testing.T) {
	ann := Annotation{Text: "test", Start: 0, End: 5, Label: "test"}

	want := MatchRecord{Text: "test", Start: 0, End: 5, Label: "test"}
	if got := ann.MatchRecord(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestAnnotation_Trim(t *testing.T) {
	tests := []struct {
		name string
		ann  Annotation
		trim func(*Annotation)
		want Annotation
	}{
		{
			name: "left",
			ann:  Annotation{Text: " test", Start: 0, End: 5, Label: "test"},
			trim: func(a *Annotation) { a.TrimLeft("") },
			want: Annotation{Text: "test", Start: 1, End: 5, Label: "test"},
		},
		{
			name: "right",
			ann:  Annotation{Text: "test,", Start: 0, End: 5, Label: "test"},
			trim: func(a *Annotation) { a.TrimRight("") },
			want: Annotation{Text: "test", Start: 0, End: 4, Label: "test"},
		},
		{
			name: "both",
			ann:  Annotation{Text: " test,", Start: 0, End: 6, Label: "test"},
			trim: func(a *Annotation) { a.Trim("") },
			want: Annotation{Text: "test", Start: 1, End: 5, Label: "test"},
		},
		{
			name: "nothing to trim",
			ann:  Annotation{Text: "test", Start: 10, End: 14, Label: "test"},
			trim: func(a *Annotation) { a.Trim("") },
			want: Annotation{Text: "test", Start: 10, End: 14, Label: "test"},
		},
		{
			name: "everything trimmed",
			ann:  Annotation{Text: " , ", Start: 3, End: 6, Label: "test"},
			trim: func(a *Annotation) { a.Trim("") },
			want: Annotation{Text: "", Start: 6, End: 6, Label: "test"},
		},
		{
			name: "custom cutset",
			ann:  Annotation{Text: "(anemie).", Start: 20, End: 29, Label: "test"},
			trim: func(a *Annotation) { a.Trim("().") },
			want: Annotation{Text: "anemie", Start: 21, End: 27, Label: "test"},
		},
		{
			name: "multibyte cutset counts characters",
			ann:  Annotation{Text: "…koorts…", Start: 0, End: 8, Label: "test"},
			trim: func(a *Annotation) { a.Trim("…") },
			want: Annotation{Text: "koorts", Start: 1, End: 7, Label: "test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ann := tt.ann
			tt.trim(&ann)
			if diff := cmp.Diff(tt.want, ann); diff != "" {
				t.Errorf("trim mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnnotation_TrimIdempotent(t *testing.T) {
	texts := []string{" test,", "test", ",,, a b ,", "", "  ", "x"}

	for _, text := range texts {
		ann := Annotation{Text: text, Start: 5, End: 5 + len(text)}
		ann.Trim("")
		once := ann
		ann.Trim("")

		if !cmp.Equal(ann, once) {
			t.Errorf("Trim(%q) not idempotent: %+v then %+v", text, once, ann)
		}
	}
}

func TestAnnotation_TrimKeepsSpanAligned(t *testing.T) {
	docText := "patient had geen  anemie, wel koorts"
	start, end := 16, 25 // "  anemie,"

	ann := Annotation{Text: docText[start:end], Start: start, End: end}
	ann.Trim("")

	if ann.Text != "anemie" {
		t.Fatalf("Expected text 'anemie', got %q", ann.Text)
	}
	if got := docText[ann.Start:ann.End]; got != ann.Text {
		t.Errorf("Expected span to index %q, got %q", ann.Text, got)
	}
	if ann.End-ann.Start != len(ann.Text) {
		t.Errorf("Expected span length %d, got %d", len(ann.Text), ann.End-ann.Start)
	}
}

func TestAnnotation_QualifierNames(t *testing.T) {
	ann := Annotation{
		Text: "test", Start: 0, End: 4, Label: "test",
		Qualifiers: []Qualifier{
			{Name: "Negation", Value: "Affirmed"},
			{Name: "Experiencer", Value: "Other"},
		},
	}

	want := []string{"Experiencer", "Negation"}
	if diff := cmp.Diff(want, ann.QualifierNames()); diff != "" {
		t.Errorf("QualifierNames mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnotation_QualifierByName(t *testing.T) {
	ann := Annotation{
		Text: "test", Start: 0, End: 4, Label: "test",
		Qualifiers: []Qualifier{
			{Name: "Negation", Value: "Affirmed"},
			{Name: "Experiencer", Value: "Other"},
		},
	}

	q, err := ann.QualifierByName("Experiencer")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if q != (Qualifier{Name: "Experiencer", Value: "Other"}) {
		t.Errorf("Unexpected qualifier %+v", q)
	}

	_, err = ann.QualifierByName("Temporality")
	if !errors.Is(err, ErrQualifierNotFound) {
		t.Errorf("Expected ErrQualifierNotFound, got %v", err)
	}
}

func TestAnnotation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ann     Annotation
		wantErr bool
	}{
		{"ok", Annotation{Start: 0, End: 4, Qualifiers: []Qualifier{{Name: "Negation"}, {Name: "Experiencer"}}}, false},
		{"empty span", Annotation{Start: 4, End: 4}, false},
		{"negative start", Annotation{Start: -1, End: 4}, true},
		{"end before start", Annotation{Start: 5, End: 4}, true},
		{"duplicate qualifier", Annotation{Start: 0, End: 4, Qualifiers: []Qualifier{{Name: "Negation"}, {Name: "Negation"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ann.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidAnnotation) {
				t.Errorf("Expected ErrInvalidAnnotation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestQualifier_MarshalJSON(t *testing.T) {
	q := Qualifier{Name: "Negation", Value: "Negated"}

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != `{"name":"Negation","value":"Negated"}` {
		t.Errorf("Unexpected JSON without default: %s", data)
	}

	q.SetDefault(false)
	data, err = json.Marshal(q)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != `{"name":"Negation","value":"Negated","is_default":false}` {
		t.Errorf("Unexpected JSON with default: %s", data)
	}
}
