package ir

// Flatten splices nested sequences so that every block is one flat list of
// instructions. If, Loop and Par keep their structure, with each sub-block
// flattened independently. A block that reduces to a single instruction is
// represented as that instruction rather than a singleton sequence.
func Flatten(n Node) Node {
	switch v := n.(type) {
	case *Seq:
		items := flattenItems(v.Items)
		if len(items) == 1 {
			return items[0]
		}
		return &Seq{Items: items}
	case *Par:
		items := make([]Node, len(v.Items))
		for i, c := range v.Items {
			items[i] = Flatten(c)
		}
		return &Par{Items: items}
	case *If:
		return &If{Cond: v.Cond, Then: Flatten(v.Then), Else: Flatten(v.Else), Live: v.Live}
	case *Loop:
		return &Loop{Cond: v.Cond, Body: Flatten(v.Body), Live: v.Live}
	default:
		return n
	}
}

func flattenItems(items []Node) []Node {
	out := make([]Node, 0, len(items))
	for _, c := range items {
		flat := Flatten(c)
		if s, ok := flat.(*Seq); ok {
			out = append(out, s.Items...)
			continue
		}
		out = append(out, flat)
	}
	return out
}
