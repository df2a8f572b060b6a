package bcgen

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/risor-io/bcgen/op"
	"github.com/rs/zerolog"
)

// Relocatable is the set of stream patching operations a Relocator needs.
// FunctionGenerator implements it.
type Relocatable interface {
	Len() int
	Emit(code op.Code, operands ...int64) uint32
	ShrinkJump(loc uint32)
	UpdateJumpTarget(loc uint32, value int32, width int)
	UpdateJumpTableOffset(loc, jumpTableOffset, cs uint32)
	LongToShortJump(loc uint32)
	SetJumpTable(table []uint32)
}

// Label names a position in the stream that jumps may refer to before it
// is known.
type Label int

const unbound = -1

// Byte offsets of the SwitchImm operands.
const (
	switchTableOperand   = 2
	switchDefaultOperand = 6
)

type jumpReloc struct {
	at    uint32
	label Label
	long  bool
}

type switchReloc struct {
	at           uint32
	defaultLabel Label
	cases        []Label
}

// RelocationResult describes a completed relocation.
type RelocationResult struct {
	// Passes is the number of shrinking passes run, including the final
	// pass that shrank nothing.
	Passes int
	// PassSizes holds the stream size after each pass.
	PassSizes []int
	// Shrunk is the number of jumps converted to the short form.
	Shrunk int
}

// RelocatorOption configures a Relocator.
type RelocatorOption func(*Relocator)

// WithLogger sets the logger that receives per-pass relocation events.
func WithLogger(logger zerolog.Logger) RelocatorOption {
	return func(r *Relocator) {
		r.logger = logger
	}
}

// Relocator emits label-relative jumps and switches into a stream and
// resolves them once all labels are bound. Jumps start in their long form
// and are shrunk to the short form, repeatedly, until no further jump
// fits in a signed byte.
type Relocator struct {
	target   Relocatable
	logger   zerolog.Logger
	labels   []int64
	jumps    []jumpReloc
	switches []switchReloc
	resolved bool
}

// NewRelocator creates a Relocator for the given stream. When the stream
// is a FunctionGenerator, the owning module's logger is used by default.
func NewRelocator(target Relocatable, opts ...RelocatorOption) *Relocator {
	r := &Relocator{target: target, logger: zerolog.Nop()}
	if g, ok := target.(*FunctionGenerator); ok {
		r.logger = g.owner.opts.Logger
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewLabel returns a fresh, unbound label.
func (r *Relocator) NewLabel() Label {
	r.labels = append(r.labels, unbound)
	return Label(len(r.labels) - 1)
}

// Bind sets the label to the current end of the stream.
func (r *Relocator) Bind(label Label) {
	if r.labels[label] != unbound {
		fail(ErrLabelBound, "label %d", label)
	}
	r.labels[label] = int64(r.target.Len())
}

// IsBound reports whether the label has been bound.
func (r *Relocator) IsBound(label Label) bool {
	return r.labels[label] != unbound
}

// Offset returns the stream offset a label is bound to.
func (r *Relocator) Offset(label Label) (uint32, bool) {
	if int(label) < 0 || int(label) >= len(r.labels) || r.labels[label] == unbound {
		return 0, false
	}
	return uint32(r.labels[label]), true
}

// EmitJump appends the long form of a jump to label. The code may be given
// in either form; regs are the remaining operands of the jump.
func (r *Relocator) EmitJump(code op.Code, label Label, regs ...int64) uint32 {
	long := code
	if !op.IsLongJump(code) {
		var ok bool
		if long, ok = op.LongJump(code); !ok {
			fail(ErrUnknownJumpOpcode, "%s", code)
		}
	}
	at := r.target.Emit(long, append([]int64{0}, regs...)...)
	r.jumps = append(r.jumps, jumpReloc{at: at, label: label, long: true})
	return at
}

// EmitSwitch appends a SwitchImm on reg covering the values lo through
// lo+len(cases)-1, jumping to the matching case label or to defaultLabel.
func (r *Relocator) EmitSwitch(reg int64, lo uint32, defaultLabel Label, cases []Label) uint32 {
	if len(cases) == 0 {
		fail(ErrOperandCount, "switch needs at least one case")
	}
	hi := int64(lo) + int64(len(cases)) - 1
	if hi > math.MaxUint32 {
		fail(ErrOperandRange, "switch range %d..%d", lo, hi)
	}
	at := r.target.Emit(op.SwitchImm, reg, 0, 0, int64(lo), hi)
	r.switches = append(r.switches, switchReloc{
		at:           at,
		defaultLabel: defaultLabel,
		cases:        append([]Label(nil), cases...),
	})
	return at
}

// Resolve shrinks every jump that can use the short form, then patches all
// jump operands and installs the jump table. It fails if any referenced
// label was never bound.
func (r *Relocator) Resolve() (RelocationResult, error) {
	if r.resolved {
		return RelocationResult{}, errors.New("relocations already resolved")
	}
	if err := r.checkLabels(); err != nil {
		return RelocationResult{}, err
	}
	r.resolved = true

	var result RelocationResult
	for {
		shrunk := r.shrinkPass()
		result.Passes++
		result.Shrunk += shrunk
		result.PassSizes = append(result.PassSizes, r.target.Len())
		r.logger.Debug().
			Int("pass", result.Passes).
			Int("shrunk", shrunk).
			Int("size", r.target.Len()).
			Msg("relocation pass")
		if shrunk == 0 {
			break
		}
	}
	r.patch()
	return result, nil
}

func (r *Relocator) checkLabels() error {
	var result *multierror.Error
	check := func(label Label, at uint32) {
		if int(label) < 0 || int(label) >= len(r.labels) {
			result = multierror.Append(result, fmt.Errorf("jump at %d: unknown label %d", at, label))
		} else if r.labels[label] == unbound {
			result = multierror.Append(result, fmt.Errorf("jump at %d: label %d is never bound", at, label))
		}
	}
	for _, j := range r.jumps {
		check(j.label, j.at)
	}
	for _, s := range r.switches {
		check(s.defaultLabel, s.at)
		for _, c := range s.cases {
			check(c, s.at)
		}
	}
	return result.ErrorOrNil()
}

// shrinkPass converts every long jump whose displacement fits in a signed
// byte, in stream order, and returns how many were converted.
func (r *Relocator) shrinkPass() int {
	shrunk := 0
	for i := range r.jumps {
		j := &r.jumps[i]
		if !j.long {
			continue
		}
		disp := r.labels[j.label] - int64(j.at)
		if disp < math.MinInt8 || disp > math.MaxInt8 {
			continue
		}
		r.target.LongToShortJump(j.at)
		r.target.ShrinkJump(j.at + 1)
		r.shift(j.at + 1)
		j.long = false
		shrunk++
	}
	return shrunk
}

// shift moves every tracked offset beyond loc back by the three bytes a
// shrink removes.
func (r *Relocator) shift(loc uint32) {
	for i, off := range r.labels {
		if off != unbound && off > int64(loc) {
			r.labels[i] = off - 3
		}
	}
	for i := range r.jumps {
		if r.jumps[i].at > loc {
			r.jumps[i].at -= 3
		}
	}
	for i := range r.switches {
		if r.switches[i].at > loc {
			r.switches[i].at -= 3
		}
	}
}

func (r *Relocator) patch() {
	for _, j := range r.jumps {
		disp := int32(r.labels[j.label] - int64(j.at))
		width := 1
		if j.long {
			width = 4
		}
		r.target.UpdateJumpTarget(j.at+1, disp, width)
	}
	var table []uint32
	for _, s := range r.switches {
		offset := uint32(len(table))
		for _, c := range s.cases {
			table = append(table, uint32(int32(r.labels[c]-int64(s.at))))
		}
		r.target.UpdateJumpTableOffset(s.at+switchTableOperand, offset, s.at)
		r.target.UpdateJumpTarget(s.at+switchDefaultOperand, int32(r.labels[s.defaultLabel]-int64(s.at)), 4)
	}
	if len(table) > 0 {
		r.target.SetJumpTable(table)
	}
}
