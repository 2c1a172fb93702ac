package oracle

import (
	"sort"

	"kefir/internal/ir"
)

// PredecessorMap gives, for every block in a container, its predecessor
// set derived from every other block's terminator (including inline-asm
// jump targets), per spec §4.2.
type PredecessorMap struct {
	preds map[ir.ID][]ir.ID
}

// Predecessors computes the full predecessor map for c.
func Predecessors(c *ir.CodeContainer) (*PredecessorMap, error) {
	succs, err := AllSuccessors(c)
	if err != nil {
		return nil, err
	}
	preds := make(map[ir.ID][]ir.ID)
	for _, b := range c.Blocks() {
		preds[b] = nil
	}
	for from, tos := range succs {
		for _, to := range tos {
			preds[to] = append(preds[to], from)
		}
	}
	for b := range preds {
		sort.Slice(preds[b], func(i, j int) bool { return preds[b][i] < preds[b][j] })
	}
	return &PredecessorMap{preds: preds}, nil
}

// Of returns the (sorted, deduplicated) predecessor set of block.
func (p *PredecessorMap) Of(block ir.ID) []ir.ID {
	return p.preds[block]
}

// Contains reports whether candidate is a predecessor of block.
func (p *PredecessorMap) Contains(block, candidate ir.ID) bool {
	for _, b := range p.preds[block] {
		if b == candidate {
			return true
		}
	}
	return false
}
