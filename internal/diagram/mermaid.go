package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	// Render nodes with shapes based on kind.
	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	// Render edges.
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	// Status class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef ready fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef waiting_async fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef guard_held fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef blocked fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")

	// Apply status classes.
	for _, node := range model.Nodes {
		if node.Status != nil && node.Status.Status != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n",
				mermaidSafeID(node.ID), node.Status.Status))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)
	if node.Status != nil && node.Status.DurationMins > 0 {
		label = fmt.Sprintf("%s (%dm)", label, node.Status.DurationMins)
	}

	switch node.Kind {
	case NodeKindTrigger:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindStep:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	default: // task
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}
