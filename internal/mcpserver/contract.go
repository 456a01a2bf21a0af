package mcpserver

import (
	"strings"

	"github.com/starford/pathgraph/internal/models"
	"github.com/starford/pathgraph/internal/vocab"
)

// RecordFormatContract describes the input record format; the vocabulary
// section is appended by RecordContract.
const RecordFormatContract = `# Pathgraph Record Format

Input is line-delimited JSON: one object per line. Blank lines are ignored,
lines that do not parse as an object are skipped and counted as parse errors.

## Fields

| Field | Type | Meaning |
|---|---|---|
| name | string | Entity name. Required whenever the type matches a vocabulary. |
| type | string | Type label; decides the entity category (see below). |
| target | string | Compounds only: the gene or protein the compound acts on. |
| related_pathway | string | Pathway the compound, gene or protein takes part in. |
| related_diseases | list of strings | Diseases the entity is associated with. |
| modifications | list of objects | Post-translational modifications; each object's enzyme field names an Enzyme. |
| uniprot_id | string | Presence alone makes the record a Protein (unless compound or gene matched first). |

Any other field is stored as a property of the record's own node.

## Classification

Checks run in order and the first match decides the record's own category:
compound type, gene type, uniprot_id present or protein type, method type.
Independently of that, every related_diseases entry becomes a Disease, every
modifications[].enzyme becomes an Enzyme, an enzyme type label makes the record
itself an Enzyme too, and related_pathway becomes a Pathway for compounds,
genes and proteins.

## Relationships

- Compound -targets-> Gene or Protein named by target
- Compound, Gene, Protein -involved_in-> Pathway
- Gene, Protein -assoc_with-> Disease
- Compound -treats-> Disease

Names are matched exactly. Self-referencing pairs are discarded and repeated
pairs are written once.

## Example

` + "```" + `json
{"name":"Rapamycin","type":"MTOR抑制剂","target":"MTOR","related_pathway":"mTOR signaling","related_diseases":["Alzheimer's disease"]}
{"name":"P62","type":"自噬受体","uniprot_id":"Q13501","modifications":[{"enzyme":"ULK1","site":"S403"}]}
` + "```" + `
`

var contractCategories = []models.Category{models.Compound, models.Gene, models.Protein, models.Method, models.Enzyme}

// RecordContract renders the contract followed by the type labels of v.
func RecordContract(v *vocab.Vocabulary) string {
	var b strings.Builder
	b.WriteString(RecordFormatContract)
	b.WriteString("\n## Type labels\n")
	for _, c := range contractCategories {
		b.WriteString("\n### ")
		b.WriteString(string(c))
		b.WriteString("\n\n")
		for _, l := range v.Labels(c) {
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}
