package oracle

import "kefir/internal/ir"

// Interval is an instruction's live range expressed as positions in the
// function's dominance-respecting linearization: [DefPosition,
// LastUsePosition]. A value with no uses has DefPosition == LastUsePosition.
type Interval struct {
	DefPosition     int
	LastUsePosition int
}

// Liveness gives, for every instruction still referenced anywhere in the
// function, its live interval over the linearization.
type Liveness struct {
	order    []ir.ID // instruction ref at each linear position
	position map[ir.ID]int
	interval map[ir.ID]Interval
}

// ComputeLiveness builds liveness intervals for c, given its dominance
// tree (for the reverse-post-order block sequence liveness linearizes
// over).
func ComputeLiveness(c *ir.CodeContainer, dom *Dominance) (*Liveness, error) {
	var order []ir.ID
	position := make(map[ir.ID]int)

	for _, block := range dom.ReversePostOrder() {
		head, err := c.BlockInstrHead(block)
		if err != nil {
			return nil, err
		}
		for ref := head; ref != ir.NoRef; {
			position[ref] = len(order)
			order = append(order, ref)
			next, err := c.InstructionNextSibling(ref)
			if err != nil {
				return nil, err
			}
			ref = next
		}
	}

	interval := make(map[ir.ID]Interval)
	ensure := func(ref ir.ID, pos int) {
		iv, ok := interval[ref]
		if !ok {
			interval[ref] = Interval{DefPosition: pos, LastUsePosition: pos}
			return
		}
		if pos > iv.LastUsePosition {
			iv.LastUsePosition = pos
		}
		if pos < iv.DefPosition {
			iv.DefPosition = pos
		}
		interval[ref] = iv
	}

	for _, ref := range order {
		ensure(ref, position[ref])
	}

	// Ordinary uses: for every instruction, extend the interval of each
	// operand it references to this instruction's position.
	for _, ref := range order {
		instr, err := c.Instr(ref)
		if err != nil {
			return nil, err
		}
		for _, operand := range directOperands(instr.Operation) {
			if operand == ir.NoRef {
				continue
			}
			if pos, ok := position[operand]; ok {
				_ = pos
				ensure(operand, position[ref])
			}
		}
	}

	// Phi liveness: a phi's operand from predecessor p is live up to the
	// position of p's terminator, not just the phi's own position, since
	// the value must survive across the control-flow edge.
	for _, block := range dom.ReversePostOrder() {
		phiHead, err := c.BlockPhiHead(block)
		if err != nil {
			return nil, err
		}
		for phiID := phiHead; phiID != ir.NoRef; {
			links, err := c.PhiLinks(phiID)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				pred, val := link[0], link[1]
				if val == ir.NoRef {
					continue
				}
				tail, err := c.BlockInstrControlTail(pred)
				if err != nil {
					return nil, err
				}
				if tail == ir.NoRef {
					continue
				}
				if pos, ok := position[tail]; ok {
					ensure(val, pos)
				}
			}
			next, err := c.PhiNextSibling(phiID)
			if err != nil {
				return nil, err
			}
			phiID = next
		}
	}

	return &Liveness{order: order, position: position, interval: interval}, nil
}

func directOperands(op ir.Operation) []ir.ID {
	out := append([]ir.ID{}, op.Parameters.Refs[:]...)
	if op.Parameters.IRRef != ir.NoRef {
		out = append(out, op.Parameters.IRRef)
	}
	if op.Parameters.Branch.ConditionRef != ir.NoRef {
		out = append(out, op.Parameters.Branch.ConditionRef)
	}
	if op.Parameters.FunctionCall.IndirectRef != ir.NoRef {
		out = append(out, op.Parameters.FunctionCall.IndirectRef)
	}
	return out
}

// Position returns ref's index in the linearization.
func (l *Liveness) Position(ref ir.ID) (int, bool) {
	p, ok := l.position[ref]
	return p, ok
}

// IntervalOf returns ref's live interval.
func (l *Liveness) IntervalOf(ref ir.ID) (Interval, bool) {
	iv, ok := l.interval[ref]
	return iv, ok
}

// Linearization returns the instruction order liveness (and the register
// allocator's interference-graph construction) walks.
func (l *Liveness) Linearization() []ir.ID {
	return append([]ir.ID(nil), l.order...)
}

// LiveAt reports whether ref's interval covers position pos.
func (l *Liveness) LiveAt(ref ir.ID, pos int) bool {
	iv, ok := l.interval[ref]
	if !ok {
		return false
	}
	return iv.DefPosition <= pos && pos <= iv.LastUsePosition
}
