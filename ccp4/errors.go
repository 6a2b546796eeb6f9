package ccp4

import "fmt"

// BadMagicError reports a missing or wrong "MAP " identifier at word 52.
type BadMagicError struct {
	Got uint32
}

func (e *BadMagicError) Error() string {
	return fmt.Sprintf("ccp4: bad magic: got %#08x, want %#08x", e.Got, magicWord)
}

// UnsupportedModeError reports a MODE other than 0 (int8) or 2 (float32).
type UnsupportedModeError struct {
	Mode int32
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("ccp4: unsupported mode %d (only 0 and 2 are supported)", e.Mode)
}

// SizeMismatchError reports that the total payload size doesn't satisfy
// 1024 + NSYMBT + bytesPerVoxel*NC*NR*NS.
type SizeMismatchError struct {
	Want, Got int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("ccp4: size mismatch: header implies %d bytes, got %d", e.Want, e.Got)
}

// SymmetryMisalignmentError reports an NSYMBT that is negative or not a
// multiple of 4 (the word alignment required by the header's own size
// invariant). An NSYMBT that is not a multiple of the 80-byte record length
// is accepted.
type SymmetryMisalignmentError struct {
	NSYMBT int32
}

func (e *SymmetryMisalignmentError) Error() string {
	return fmt.Sprintf("ccp4: NSYMBT=%d is not a multiple of 4", e.NSYMBT)
}

// BadSymmetryOperatorError reports a symmetry record that
// ParseSymmetryOperator could not interpret.
type BadSymmetryOperatorError struct {
	Record string
	Reason string
}

func (e *BadSymmetryOperatorError) Error() string {
	return fmt.Sprintf("ccp4: bad symmetry operator %q: %s", e.Record, e.Reason)
}

// SymmetryExpansionUnsupportedError is returned when ReadOptions.ExpandSymmetry
// is set on a map with NSYMBT > 0.
type SymmetryExpansionUnsupportedError struct{}

func (e *SymmetryExpansionUnsupportedError) Error() string {
	return "ccp4: symmetry expansion is not supported"
}
