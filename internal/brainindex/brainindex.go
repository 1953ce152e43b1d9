// Package brainindex renders a human-readable Markdown index of every
// entity in the store, grouped by type, per spec.md §4.15 ("misc...
// brain-index generator"). Ported from
// original_source/tools/brain/brain_index_generator.py.
package brainindex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmos/brain/internal/entity"
)

// typeOrder fixes a stable, readable section order for the generated
// document instead of alphabetizing the closed type set.
var typeOrder = []entity.Type{
	entity.TypePerson, entity.TypeTeam, entity.TypeSquad, entity.TypeProject,
	entity.TypeDomain, entity.TypeExperiment, entity.TypeSystem, entity.TypeBrand,
}

// Row is one entity line in the generated index.
type Row struct {
	Path string
	Name string
	ID   string
}

// Generate renders a Markdown document listing every entity grouped by
// type, each linking to its relative path.
func Generate(entities map[string]entity.Entity) string {
	byType := map[entity.Type][]Row{}
	for path, e := range entities {
		byType[e.Header.Type] = append(byType[e.Header.Type], Row{Path: path, Name: e.Header.Name, ID: e.Header.ID})
	}
	for t := range byType {
		sort.Slice(byType[t], func(i, j int) bool { return byType[t][i].Name < byType[t][j].Name })
	}

	var b strings.Builder
	b.WriteString("# Brain Index\n\n")

	seen := map[entity.Type]bool{}
	for _, t := range typeOrder {
		rows := byType[t]
		if len(rows) == 0 {
			continue
		}
		seen[t] = true
		fmt.Fprintf(&b, "## %s\n\n", title(string(t)))
		for _, r := range rows {
			fmt.Fprintf(&b, "- [%s](%s) — `%s`\n", r.Name, r.Path, r.ID)
		}
		b.WriteString("\n")
	}
	// Any type not in typeOrder (shouldn't happen for a valid v2 store,
	// but keeps the generator total over malformed input) gets a
	// trailing "Other" section rather than being silently dropped.
	var others []string
	for t := range byType {
		if !seen[t] {
			others = append(others, string(t))
		}
	}
	sort.Strings(others)
	for _, t := range others {
		rows := byType[entity.Type(t)]
		fmt.Fprintf(&b, "## %s\n\n", title(t))
		for _, r := range rows {
			fmt.Fprintf(&b, "- [%s](%s) — `%s`\n", r.Name, r.Path, r.ID)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func title(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:] + "s"
}
