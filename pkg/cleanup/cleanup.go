// Package cleanup tidies the control flow of a rewritten method body.
//
// The body is cut into basic blocks. Blocks that cannot be reached are
// dropped, empty blocks are folded into their successors, GOTOs to the next
// block in line are removed, and exception handler and local variable ranges
// that have become empty are discarded. Line numbers are attached to the
// next real instruction so that entries left behind by removed code vanish.
package cleanup

import (
	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bridge.cleanup")

// Options selects which debug information to drop.
type Options struct {
	NoLines  bool
	NoLocals bool
}

type block struct {
	labels   []*bytecode.Label
	ops      []bytecode.Insn
	term     bytecode.Insn // return or athrow, Op 0 when none
	next     int           // successor by fallthrough or GOTO, -1 when none
	branches []int
	opens    []int    // handlers whose range starts at this block
	attrs    []func() // range records closing at this block
	merge    int      // block this one was folded into, -1 when none
	used     bool
}

func (b *block) terminated() bool {
	return b.term.Op != 0
}

type rangeEnd struct {
	end     *bytecode.Label
	handler int
}

type cleaner struct {
	in     *bytecode.Body
	opts   Options
	blocks []*block // arena
	seq    []int    // blocks in code order
	cur    int
	of     map[*bytecode.Label]int
	open   []rangeEnd
	line   *bytecode.Insn

	keepHandler []bool
	keepLocal   []bool
	keepType    []bool
	out         *bytecode.Body
}

// Run returns the cleaned body. The input is not modified.
func Run(in *bytecode.Body, opts Options) *bytecode.Body {
	c := &cleaner{
		in:          in,
		opts:        opts,
		of:          make(map[*bytecode.Label]int),
		keepHandler: make([]bool, len(in.Handlers)),
		keepLocal:   make([]bool, len(in.Locals)),
		keepType:    make([]bool, len(in.LocalTypes)),
		out:         &bytecode.Body{},
	}
	c.build()
	c.reach()
	c.emit()

	for i, h := range in.Handlers {
		if c.keepHandler[i] {
			c.out.Handlers = append(c.out.Handlers, h)
		}
	}
	for i, l := range in.Locals {
		if c.keepLocal[i] {
			c.out.Locals = append(c.out.Locals, l)
		}
	}
	for i, l := range in.LocalTypes {
		if c.keepType[i] {
			c.out.LocalTypes = append(c.out.LocalTypes, l)
		}
	}
	return c.out
}

func (c *cleaner) alloc() int {
	c.blocks = append(c.blocks, &block{next: -1, merge: -1})
	return len(c.blocks) - 1
}

// blockOf returns the block a label opens, allocating it on first use.
func (c *cleaner) blockOf(l *bytecode.Label) int {
	if i, ok := c.of[l]; ok {
		return i
	}
	i := c.alloc()
	c.of[l] = i
	return i
}

// begin starts a fresh block in code order.
func (c *cleaner) begin(i int) {
	c.seq = append(c.seq, i)
	c.cur = i
}

func (c *cleaner) find(i int) int {
	root := i
	for c.blocks[root].merge >= 0 {
		root = c.blocks[root].merge
	}
	for c.blocks[i].merge >= 0 {
		next := c.blocks[i].merge
		c.blocks[i].merge = root
		i = next
	}
	return root
}

// absorb folds n into b: b keeps its labels and takes over everything else.
func (c *cleaner) absorb(b, n int) {
	bb, nb := c.blocks[b], c.blocks[n]
	bb.labels = append(bb.labels, nb.labels...)
	bb.branches = append(bb.branches, nb.branches...)
	bb.attrs = append(bb.attrs, nb.attrs...)
	bb.ops = nb.ops
	bb.term = nb.term
	bb.next = nb.next
	bb.used = nb.used
	nb.merge = b
}

// empty reports whether no instruction lies between block from and block to.
func (c *cleaner) empty(from, to int) bool {
	for b := from; ; {
		b = c.find(b)
		if b == to {
			return true
		}
		if len(c.blocks[b].ops) != 0 {
			return false
		}
		if b = c.blocks[b].next; b < 0 {
			return true
		}
	}
}

func (c *cleaner) build() {
	c.begin(c.alloc())
	for i, h := range c.in.Handlers {
		s := c.blockOf(h.Start)
		c.blocks[s].opens = append(c.blocks[s].opens, i)
	}

	for _, in := range c.in.Insns {
		switch {
		case in.Op == bytecode.OpLabel:
			c.label(in.Label)
		case in.Op == bytecode.OpLine:
			if !c.opts.NoLines {
				l := in
				c.line = &l
			}
		case in.Op == bytecode.OpGoto:
			c.blocks[c.cur].next = c.blockOf(in.Target)
			c.begin(c.alloc())
		case in.Op.IsReturn() || in.Op == bytecode.OpAthrow:
			c.flushLine()
			c.blocks[c.cur].term = in
			c.begin(c.alloc())
		case in.Op.IsSwitch():
			c.op(in)
			for _, l := range in.Targets {
				c.branch(l)
			}
			c.branch(in.Default)
			c.begin(c.alloc())
		case in.Op.IsJump():
			c.op(in)
			c.branch(in.Target)
		default:
			c.op(in)
		}
	}

	end := c.alloc()
	c.blocks[end].used = true
	c.begin(end)

	if c.opts.NoLocals {
		return
	}
	for i, l := range c.in.Locals {
		c.local(l, c.keepLocal, i)
	}
	for i, l := range c.in.LocalTypes {
		c.local(l, c.keepType, i)
	}
}

func (c *cleaner) flushLine() {
	if c.line != nil {
		b := c.blocks[c.cur]
		b.ops = append(b.ops, *c.line)
		c.line = nil
	}
}

func (c *cleaner) op(in bytecode.Insn) {
	c.flushLine()
	b := c.blocks[c.cur]
	b.ops = append(b.ops, in)
}

func (c *cleaner) branch(l *bytecode.Label) {
	b := c.blocks[c.cur]
	b.branches = append(b.branches, c.blockOf(l))
}

func (c *cleaner) label(l *bytecode.Label) {
	var closing []int
	kept := c.open[:0]
	for _, r := range c.open {
		if r.end == l {
			closing = append(closing, r.handler)
		} else {
			kept = append(kept, r)
		}
	}
	c.open = kept

	info := c.blockOf(l)
	for _, h := range c.blocks[info].opens {
		c.open = append(c.open, rangeEnd{end: c.in.Handlers[h].End, handler: h})
		c.blockOf(c.in.Handlers[h].Target)
	}
	c.blocks[info].opens = nil

	b := c.blocks[c.cur]
	if len(b.ops) != 0 || b.terminated() {
		b.next = info
		c.begin(info)
	} else {
		c.absorb(c.cur, info)
	}
	b = c.blocks[c.cur]

	for _, r := range c.open {
		b.branches = append(b.branches, c.blockOf(c.in.Handlers[r.handler].Target))
	}
	for _, h := range closing {
		start := c.blockOf(c.in.Handlers[h].Start)
		end := c.cur
		b.attrs = append(b.attrs, func() {
			c.keepHandler[h] = !c.empty(start, c.find(end))
		})
	}
	b.labels = append(b.labels, l)
	c.of[l] = c.cur
}

func (c *cleaner) local(l bytecode.Local, keep []bool, i int) {
	end, ok := c.of[l.End]
	if !ok {
		return
	}
	start, ok := c.of[l.Start]
	if !ok {
		return
	}
	b := c.blocks[c.find(end)]
	b.attrs = append(b.attrs, func() {
		keep[i] = !c.empty(start, c.find(end))
	})
}

// reach marks the blocks control can get to from the entry block.
func (c *cleaner) reach() {
	var pending []int
	for b := c.seq[0]; ; {
		bb := c.blocks[b]
		if !bb.used {
			bb.used = true
			if len(bb.ops) != 0 {
				pending = append(pending, bb.branches...)
			}
			if bb.next >= 0 {
				b = c.find(bb.next)
				continue
			}
		}
		if len(pending) == 0 {
			break
		}
		b = c.find(pending[0])
		pending = pending[1:]
	}
}

func (c *cleaner) emit() {
	next, dropped := -1, 0
	for i := 0; i < len(c.seq); i++ {
		b := c.seq[i]
		for !c.blocks[b].used {
			if len(c.blocks[b].ops) != 0 || c.blocks[b].terminated() {
				dropped++
			}
			i++
			c.absorb(b, c.seq[i])
		}
		bb := c.blocks[b]
		if next >= 0 {
			if n := c.find(next); n != b {
				c.out.Emit(bytecode.Jump(bytecode.OpGoto, c.blocks[n].labels[0]))
			}
		}
		for _, l := range bb.labels {
			c.out.Emit(bytecode.Mark(l))
		}
		for _, attr := range bb.attrs {
			attr()
		}
		for _, in := range bb.ops {
			c.out.Emit(in)
		}
		if bb.terminated() {
			c.out.Emit(bb.term)
		}
		next = bb.next
	}
	if dropped > 0 {
		log.Debugf("dropped %d unreachable blocks", dropped)
	}
}
