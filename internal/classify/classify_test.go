package classify

import (
	"errors"
	"testing"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
)

func categories(res *Result) map[models.Category][]string {
	out := make(map[models.Category][]string)
	for _, e := range res.Entities {
		out[e.Category] = append(out[e.Category], e.Name)
	}
	return out
}

func TestPrimaryCategory_Order(t *testing.T) {
	c := New(nil)
	cases := []struct {
		rec  models.Record
		want models.Category
	}{
		{models.Record{"name": "Rapamycin", "type": "MTOR抑制剂"}, models.Compound},
		{models.Record{"name": "TFEB", "type": "转录因子"}, models.Gene},
		{models.Record{"name": "LC3", "type": "自噬标记物"}, models.Protein},
		{models.Record{"name": "P62", "type": "unknown", "uniprot_id": "Q13501"}, models.Protein},
		{models.Record{"name": "M1", "type": "细胞模型"}, models.Method},
		// Gene vocabulary wins over the uniprot marker.
		{models.Record{"name": "ATG5", "type": "核心基因", "uniprot_id": "Q9H1Y0"}, models.Gene},
		{models.Record{"name": "X", "type": "unknown"}, ""},
	}
	for _, tc := range cases {
		if got := c.PrimaryCategory(tc.rec); got != tc.want {
			t.Errorf("PrimaryCategory(%v) = %q, want %q", tc.rec, got, tc.want)
		}
	}
}

func TestClassify_MethodRecord(t *testing.T) {
	res, err := New(nil).Classify(models.Record{"type": "动物模型", "name": "M1"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Primary != models.Method {
		t.Fatalf("primary = %q, want Method", res.Primary)
	}
	if len(res.Entities) != 1 || res.Entities[0].Name != "M1" {
		t.Errorf("entities = %+v", res.Entities)
	}
}

func TestClassify_MultiMembership(t *testing.T) {
	rec := models.Record{
		"name":             "TP53",
		"type":             "核心基因",
		"related_pathway":  "Autophagy",
		"related_diseases": []any{"AD", "PD", ""},
		"modifications":    []any{map[string]any{"enzyme": "ULK1"}, map[string]any{"site": "S15"}},
	}
	res, err := New(nil).Classify(rec)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	got := categories(res)
	if len(got[models.Gene]) != 1 || got[models.Gene][0] != "TP53" {
		t.Errorf("gene = %v", got[models.Gene])
	}
	if len(got[models.Disease]) != 2 {
		t.Errorf("diseases = %v, want AD and PD", got[models.Disease])
	}
	if len(got[models.Enzyme]) != 1 || got[models.Enzyme][0] != "ULK1" {
		t.Errorf("enzymes = %v", got[models.Enzyme])
	}
	if len(got[models.Pathway]) != 1 || got[models.Pathway][0] != "Autophagy" {
		t.Errorf("pathways = %v", got[models.Pathway])
	}
	if res.Entities[0].Props["type"] != "核心基因" {
		t.Errorf("primary entity props = %v", res.Entities[0].Props)
	}
	if _, ok := res.Entities[0].Props["name"]; ok {
		t.Error("name should not be copied into props")
	}
}

func TestClassify_E3LigaseIsProteinAndEnzyme(t *testing.T) {
	res, err := New(nil).Classify(models.Record{"name": "PARKIN", "type": "E3泛素连接酶"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	got := categories(res)
	if len(got[models.Protein]) != 1 || len(got[models.Enzyme]) != 1 {
		t.Errorf("categories = %v", got)
	}
}

func TestClassify_DiseaseOnlyRecord(t *testing.T) {
	res, err := New(nil).Classify(models.Record{"type": "综述", "related_diseases": []any{"ALS"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Primary != "" {
		t.Errorf("primary = %q, want none", res.Primary)
	}
	if res.Dropped() {
		t.Fatal("disease-only record should not be dropped")
	}
	if res.Entities[0].Category != models.Disease || res.Entities[0].Name != "ALS" {
		t.Errorf("entities = %+v", res.Entities)
	}
}

func TestClassify_Miss(t *testing.T) {
	res, err := New(nil).Classify(models.Record{"name": "foo", "type": "综述", "related_pathway": "mTOR"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.Dropped() {
		t.Errorf("expected drop, got %+v", res.Entities)
	}
}

func TestClassify_MissingName(t *testing.T) {
	_, err := New(nil).Classify(models.Record{"type": "核心基因", "related_diseases": []any{"AD"}})
	if !errors.Is(err, apperr.ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}

	_, err = New(nil).Classify(models.Record{"type": "激酶"})
	if !errors.Is(err, apperr.ErrMissingField) {
		t.Fatalf("enzyme type without name: err = %v, want ErrMissingField", err)
	}
}

func TestClassify_MethodHasNoPathway(t *testing.T) {
	res, err := New(nil).Classify(models.Record{"name": "M2", "type": "细胞模型", "related_pathway": "mTOR"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got := categories(res); len(got[models.Pathway]) != 0 {
		t.Errorf("method should not contribute a pathway: %v", got)
	}
}
