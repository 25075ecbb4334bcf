package asm

// assignLabels attaches every collected label to the instruction it refers
// to. A label names the next instruction at or below its own line, so labels
// on otherwise-empty or comment lines fall through to the instruction that
// follows them.
func (p *Parser) assignLabels() error {
	// owner[i] is the index of the instruction a label on line i would
	// attach to, or -1 if no instruction follows line i.
	owner := make([]int, len(p.rawLines))
	for i := range owner {
		owner[i] = -1
	}
	for nodeIdx, node := range p.nodes {
		if node.LineNum < 0 {
			continue
		}
		for idx := node.LineNum; idx >= 0 && owner[idx] == -1; idx-- {
			owner[idx] = nodeIdx
		}
	}

	for lineNum, label := range p.labels {
		nodeIdx := owner[lineNum]
		if nodeIdx == -1 {
			return &LabelError{
				Line:    lineNum + 1,
				Label:   label,
				Message: "no instruction follows this label",
			}
		}
		p.nodes[nodeIdx].Labels = append(p.nodes[nodeIdx].Labels, label)
	}

	return nil
}
