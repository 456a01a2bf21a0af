// Package vocab holds the type-label vocabularies that map a record's declared
// type to an entity category.
//
// The default tables mirror the labels used by the curated corpus. New subtypes
// are added either by editing the tables below or, without a rebuild, through
// a YAML extension file:
//
//	compound:
//	  - statin
//	gene:
//	  - core gene
//	method:
//	  - animal model
//
// Keys are lowercase category names; values are appended to the defaults.
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/pathgraph/internal/models"
)

var defaultCompound = []string{
	"调控化合物",     // regulatory compound
	"他汀类药物",     // statin
	"自噬增强剂",     // autophagy enhancer
	"MTOR抑制剂",    // MTOR inhibitor
	"FKBP5抑制剂",   // FKBP5 inhibitor
	"天然化合物",     // natural compound
	"卤胺化合物",     // haloamine compound
	"神经肽",       // neuropeptide
	"解偶联剂",      // uncoupler
	"自噬诱导剂",     // autophagy inducer
	"GSK3β抑制剂",   // GSK3β inhibitor
	"V-ATPase抑制剂", // V-ATPase inhibitor
}

var defaultGene = []string{
	"核心基因",    // core gene
	"调控基因",    // regulatory gene
	"自噬调控基因",  // autophagy-regulatory gene
	"基因突变",    // gene mutation
	"转录因子",    // transcription factor
	"溶酶体调控基因", // lysosome-regulatory gene
}

var defaultProtein = []string{
	"溶酶体蛋白",          // lysosomal protein
	"分子马达蛋白",         // motor protein
	"小GTP酶",          // small GTPase
	"分子伴侣",           // chaperone
	"突触后蛋白",          // postsynaptic protein
	"凋亡标志物",          // apoptosis marker
	"ESCRT-III复合体亚基", // ESCRT-III subunit
	"组蛋白乙酰化抑制因子",     // histone-acetylation inhibitory factor
	"线粒体分裂蛋白",        // mitochondrial fission protein
	"E3泛素连接酶",        // E3 ubiquitin ligase
	"线粒体外膜受体",        // outer-mitochondrial-membrane receptor
	"促凋亡蛋白",          // pro-apoptotic protein
	"线粒体运输调控蛋白",      // mitochondrial transport regulator
	"去乙酰化酶",          // deacetylase
	"磷脂翻转酶",          // phospholipid flippase
	"炎症因子",           // inflammatory factor
	"溶酶体酶",           // lysosomal enzyme
	"自噬受体",           // autophagy receptor
	"衔接蛋白",           // adaptor protein
	"自噬标记物",          // autophagy marker
}

var defaultMethod = []string{
	"动物模型", // animal model
	"细胞模型", // cell model
}

var defaultEnzyme = []string{
	"激酶",      // kinase
	"磷酸酶",     // phosphatase
	"E3泛素连接酶", // E3 ubiquitin ligase
}

// Vocabulary maps type labels to categories. Only Compound, Gene, Protein,
// Method and Enzyme are driven by type labels.
type Vocabulary struct {
	tables map[models.Category]map[string]struct{}
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	v := &Vocabulary{tables: make(map[models.Category]map[string]struct{})}
	v.Add(models.Compound, defaultCompound...)
	v.Add(models.Gene, defaultGene...)
	v.Add(models.Protein, defaultProtein...)
	v.Add(models.Method, defaultMethod...)
	v.Add(models.Enzyme, defaultEnzyme...)
	return v
}

// Add registers extra type labels for a category. Blank labels are ignored.
func (v *Vocabulary) Add(c models.Category, labels ...string) {
	set, ok := v.tables[c]
	if !ok {
		set = make(map[string]struct{}, len(labels))
		v.tables[c] = set
	}
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			set[l] = struct{}{}
		}
	}
}

// Has reports whether typ is a registered label of category c.
func (v *Vocabulary) Has(c models.Category, typ string) bool {
	_, ok := v.tables[c][typ]
	return ok
}

// Labels returns the sorted labels of category c.
func (v *Vocabulary) Labels(c models.Category) []string {
	out := make([]string, 0, len(v.tables[c]))
	for l := range v.tables[c] {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

var extensionKeys = map[string]models.Category{
	"compound": models.Compound,
	"gene":     models.Gene,
	"protein":  models.Protein,
	"method":   models.Method,
	"enzyme":   models.Enzyme,
}

// Extend merges a YAML extension document into v.
func (v *Vocabulary) Extend(data []byte) error {
	var ext map[string][]string
	if err := yaml.Unmarshal(data, &ext); err != nil {
		return fmt.Errorf("vocab: parse extension: %w", err)
	}
	for key, labels := range ext {
		c, ok := extensionKeys[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			return fmt.Errorf("vocab: unknown category %q", key)
		}
		v.Add(c, labels...)
	}
	return nil
}

// Load returns the default vocabulary extended with the file at path.
// An empty path yields the defaults.
func Load(path string) (*Vocabulary, error) {
	v := Default()
	if path == "" {
		return v, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}
	if err := v.Extend(data); err != nil {
		return nil, err
	}
	return v, nil
}
