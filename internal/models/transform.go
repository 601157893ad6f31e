package models

import (
	"fmt"
	"strings"
)

// Direction identifies which way the composite transform is applied once
// converted to FSL format. It determines which image acts as the source,
// which as the reference, and whether the converted affine is applied
// before or after the warp field during composition.
type Direction int

const (
	// ToMNI maps native (T1w) space into MNI template space.
	// Selected when the direction flag contains "native".
	ToMNI Direction = iota

	// ToNative maps MNI template space into native (T1w) space.
	// Selected when the direction flag contains "mni".
	ToNative
)

// ParseDirection resolves a direction flag string into a Direction.
// Matching is by substring: "mni" is checked first, then "native",
// so a flag containing both resolves to ToNative.
func ParseDirection(flag string) (Direction, error) {
	switch {
	case strings.Contains(flag, "mni"):
		return ToNative, nil
	case strings.Contains(flag, "native"):
		return ToMNI, nil
	}
	return 0, fmt.Errorf("unknown direction flag %q: expected a value containing \"native\" or \"mni\"", flag)
}

// SourceTag returns the short space label of the source image.
func (d Direction) SourceTag() string {
	if d == ToNative {
		return "mni"
	}
	return "native"
}

// ReferenceTag returns the short space label of the reference image,
// which is also the label of the space the output transform resamples into.
func (d Direction) ReferenceTag() string {
	if d == ToNative {
		return "native"
	}
	return "mni"
}

// MatrixRole returns how the converted affine participates in the final
// composition: "premat" applies it before the warp field, "postmat" after.
func (d Direction) MatrixRole() string {
	if d == ToNative {
		return "postmat"
	}
	return "premat"
}

// DisassemblyPrefix returns the output prefix handed to the transform
// disassembly tool, encoding the conversion direction in the artifact names.
func (d Direction) DisassemblyPrefix() string {
	return fmt.Sprintf("from-%s_to-%s", d.SourceTag(), d.ReferenceTag())
}

// String returns the canonical flag spelling for the direction.
func (d Direction) String() string {
	if d == ToNative {
		return "mni"
	}
	return "native"
}

// Invocation holds the fully resolved inputs of one conversion run.
// All paths are absolute by the time an Invocation is constructed.
type Invocation struct {
	// TransformPath is the ANTs composite transform in HDF5 format.
	TransformPath string

	// T1wPath is the T1-weighted image defining native space.
	T1wPath string

	// MNIPath is the MNI template image defining standard space.
	MNIPath string

	// Direction selects the conversion direction derived from the flag.
	Direction Direction
}

// SourceImage returns the image whose grid describes the source space
// of the conversion.
func (inv *Invocation) SourceImage() string {
	if inv.Direction == ToNative {
		return inv.MNIPath
	}
	return inv.T1wPath
}

// ReferenceImage returns the image whose grid the final transform
// resamples into.
func (inv *Invocation) ReferenceImage() string {
	if inv.Direction == ToNative {
		return inv.T1wPath
	}
	return inv.MNIPath
}

// Artifacts collects the intermediate and final file paths produced by one
// conversion run. Intermediates live in the scratch directory and are
// removed on success; Output is permanent and sits beside the input
// transform.
type Artifacts struct {
	// ITKAffine is the affine matrix emitted by the disassembly tool.
	ITKAffine string

	// ITKField is the displacement field emitted by the disassembly tool.
	ITKField string

	// FnirtWarp is the displacement field converted to FSL's field convention.
	FnirtWarp string

	// FlirtMatrix is the affine converted to FSL's matrix convention.
	FlirtMatrix string

	// Output is the final combined FSL transform.
	Output string
}
