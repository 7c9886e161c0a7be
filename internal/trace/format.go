package trace

import "strings"

// FormatTrees renders tasks as ASCII trees, one task per line.
//
//	--+-> task_a()[0->3]
//	  +-+-> task_b()[1->3]
//	    +---> idle()[2->3]
//
// The connector after the indent is "-" for roots and "+" for children; the
// next marker is "+" when the task has children. Indentation carries a
// "| " rail while further siblings follow.
func FormatTrees(tasks []*Task) string {
	var b strings.Builder
	for _, t := range tasks {
		formatTree(&b, t, "", false)
	}
	return b.String()
}

// FormatTree renders a single tree.
func FormatTree(t *Task) string {
	var b strings.Builder
	formatTree(&b, t, "", false)
	return b.String()
}

func formatTree(b *strings.Builder, t *Task, indent string, moreSiblings bool) {
	subTasks := t.SubTasks()

	tail := "-"
	if t.parent != nil {
		tail = "+"
	}
	mid := "-"
	if len(subTasks) > 0 {
		mid = "+"
	}

	b.WriteString(indent)
	b.WriteString(tail)
	b.WriteString("-")
	b.WriteString(mid)
	b.WriteString("-> ")
	b.WriteString(t.String())
	b.WriteString("\n")

	if moreSiblings {
		indent += "| "
	} else {
		indent += "  "
	}
	for i, child := range subTasks {
		formatTree(b, child, indent, i < len(subTasks)-1)
	}
}
