package bytecode

// ExceptionHandler describes a protected try region and its handler.
// All offsets are byte offsets into the function's opcode stream.
type ExceptionHandler struct {
	Start  uint32 // first protected byte (inclusive)
	End    uint32 // end of the protected range (exclusive)
	Target uint32 // offset of the handler code
}

// Covers returns true if the given offset lies inside the protected range.
func (h ExceptionHandler) Covers(offset uint32) bool {
	return offset >= h.Start && offset < h.End
}
