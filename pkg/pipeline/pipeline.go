// Package pipeline converts an ANTs composite transform (HDF5) into a
// single FSL displacement-field transform by sequencing four external
// neuroimaging tools:
//
//  1. CompositeTransformUtil disassembles the composite transform into an
//     affine matrix and a displacement field (ITK conventions).
//  2. wb_command converts the displacement field to FNIRT convention.
//  3. c3d_affine_tool converts the affine matrix to FLIRT convention.
//  4. convertwarp composes the converted affine and field into one
//     combined transform.
//
// The converted field and the final output are intent-tagged in process so
// FSL tools recognize them as displacement fields. All intermediates live
// in a scratch directory beside the input transform; on success the
// scratch directory is removed and exactly one new file remains.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ants2fsl/internal/models"
	"ants2fsl/pkg/affine"
	"ants2fsl/pkg/config"
	"ants2fsl/pkg/nifti"
	"ants2fsl/pkg/runner"
)

// Params holds the conversion parameters for one pipeline run.
type Params struct {
	// TransformPath is the ANTs composite transform in HDF5 format.
	TransformPath string

	// T1wPath is the T1-weighted image defining native space.
	T1wPath string

	// MNIPath is the MNI template image defining standard space.
	MNIPath string

	// DirectionFlag selects the conversion direction. Any value containing
	// "mni" converts into native space; any value containing "native"
	// converts into MNI space ("mni" is matched first).
	DirectionFlag string

	// Config supplies tool names and pipeline behavior. Nil means defaults.
	Config *config.Config
}

// Pipeline performs one ANTs-to-FSL transform conversion.
type Pipeline struct {
	// params stores the conversion configuration
	params *Params

	// cfg is the resolved application configuration
	cfg *config.Config

	// run invokes the external tools
	run *runner.Runner

	// inv holds the validated, path-resolved inputs
	inv models.Invocation

	// workDir is the directory containing the input transform; the scratch
	// directory and the final output are both created here
	workDir string

	// scratchDir holds all intermediate artifacts for this run
	scratchDir string

	// artifacts records the intermediate and final file paths
	artifacts models.Artifacts
}

// NewPipeline creates a pipeline instance with the provided parameters.
func NewPipeline(params *Params) *Pipeline {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Pipeline{
		params: params,
		cfg:    cfg,
		run:    runner.NewRunner(cfg.Pipeline.Verbose),
	}
}

// OutputPath returns the path of the final combined transform. It is only
// meaningful after Run has validated the inputs.
func (p *Pipeline) OutputPath() string {
	return p.artifacts.Output
}

// ScratchDir returns the scratch directory path for this run. It is only
// meaningful after Run has validated the inputs.
func (p *Pipeline) ScratchDir() string {
	return p.scratchDir
}

// Run executes the full conversion. Any failure aborts immediately; the
// scratch directory is retained on failure for inspection and removed on
// success unless the configuration says to keep it.
func (p *Pipeline) Run(ctx context.Context) error {
	// Step 1: Validate inputs and resolve the conversion direction
	p.stepf("Step 1: Validating inputs...")
	if err := p.validateInputs(); err != nil {
		return err
	}

	// Step 2: Verify external tool availability before touching the filesystem
	p.stepf("Step 2: Checking external tools...")
	if err := p.run.CheckTools(p.cfg.ToolNames()...); err != nil {
		return err
	}

	// Step 3: Stage a fresh scratch directory
	p.stepf("Step 3: Staging scratch directory...")
	if err := p.stageScratch(); err != nil {
		return err
	}

	// Step 4: Disassemble the composite transform
	p.stepf("Step 4: Disassembling composite transform...")
	if err := p.disassemble(ctx); err != nil {
		return fmt.Errorf("failed to disassemble transform: %v", err)
	}

	// Step 5: Convert the displacement field to FNIRT convention
	p.stepf("Step 5: Converting displacement field...")
	if err := p.convertWarpfield(ctx); err != nil {
		return fmt.Errorf("failed to convert displacement field: %v", err)
	}

	// Step 6: Convert the affine matrix to FLIRT convention
	p.stepf("Step 6: Converting affine matrix...")
	if err := p.convertAffine(ctx); err != nil {
		return fmt.Errorf("failed to convert affine matrix: %v", err)
	}

	// Step 7: Compose affine and field into the final transform
	p.stepf("Step 7: Composing final transform...")
	if err := p.compose(ctx); err != nil {
		return fmt.Errorf("failed to compose final transform: %v", err)
	}

	// Step 8: Remove the scratch directory
	if !p.cfg.Pipeline.KeepScratch {
		p.stepf("Step 8: Cleaning up scratch directory...")
		if err := os.RemoveAll(p.scratchDir); err != nil {
			return fmt.Errorf("failed to remove scratch directory: %v", err)
		}
	}

	return nil
}

// validateInputs resolves the three path arguments to absolute paths,
// verifies each names a regular file, and resolves the direction flag.
// Nothing on the filesystem is created or modified here.
func (p *Pipeline) validateInputs() error {
	transform := toAbsolute(p.params.TransformPath)
	t1w := toAbsolute(p.params.T1wPath)
	mni := toAbsolute(p.params.MNIPath)

	for _, path := range []string{transform, t1w, mni} {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("input file not found: %s", path)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("input is not a regular file: %s", path)
		}
	}

	// The two reference images must be readable NIfTI volumes; catching a
	// wrong file here fails the run before any external tool is invoked
	for _, path := range []string{t1w, mni} {
		if _, err := nifti.ReadHeader(path); err != nil {
			return fmt.Errorf("input image is not a readable NIfTI volume: %v", err)
		}
	}

	direction, err := models.ParseDirection(p.params.DirectionFlag)
	if err != nil {
		return err
	}

	p.inv = models.Invocation{
		TransformPath: transform,
		T1wPath:       t1w,
		MNIPath:       mni,
		Direction:     direction,
	}

	p.workDir = filepath.Dir(transform)
	p.scratchDir = filepath.Join(p.workDir, p.cfg.Pipeline.ScratchDirName)

	base := filepath.Base(transform)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	p.artifacts.Output = filepath.Join(p.workDir, base+"_fsl.nii.gz")

	return nil
}

// stageScratch creates a fresh scratch directory for this run. A leftover
// scratch directory from an earlier failed run is removed first so that
// artifact discovery never sees stale files.
func (p *Pipeline) stageScratch() error {
	if err := os.RemoveAll(p.scratchDir); err != nil {
		return fmt.Errorf("failed to remove stale scratch directory: %v", err)
	}
	if err := os.MkdirAll(p.scratchDir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %v", err)
	}
	return nil
}

// disassemble runs the composite-transform disassembly tool with the
// scratch directory as its working directory, then locates the affine and
// displacement-field components it emitted. The tool names its outputs by
// its own convention, so discovery is by pattern; because the scratch
// directory is freshly created and owned by this run, each pattern must
// match exactly one file.
func (p *Pipeline) disassemble(ctx context.Context) error {
	prefix := p.inv.Direction.DisassemblyPrefix()
	if _, err := p.run.Run(ctx, p.scratchDir, p.cfg.Tools.CompositeTransformUtil,
		"--disassemble", p.inv.TransformPath, prefix); err != nil {
		return err
	}

	affinePath, err := p.findArtifact("*AffineTransform*.mat")
	if err != nil {
		return err
	}
	fieldPath, err := p.findArtifact("*DisplacementFieldTransform*.nii.gz")
	if err != nil {
		return err
	}

	p.artifacts.ITKAffine = affinePath
	p.artifacts.ITKField = fieldPath
	return nil
}

// findArtifact locates exactly one file in the scratch directory matching
// the pattern. Zero matches means the disassembly tool did not produce the
// expected component; multiple matches mean the directory is not exclusively
// owned by this run, and neither is recoverable.
func (p *Pipeline) findArtifact(pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(p.scratchDir, pattern))
	if err != nil {
		return "", fmt.Errorf("bad artifact pattern %q: %v", pattern, err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no disassembly output matching %q in %s", pattern, p.scratchDir)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("ambiguous disassembly outputs matching %q in %s: %v", pattern, p.scratchDir, matches)
}

// convertWarpfield converts the disassembled displacement field from ITK to
// FNIRT convention against the source image grid, then tags the result as a
// displacement field so FSL tools accept it.
func (p *Pipeline) convertWarpfield(ctx context.Context) error {
	p.artifacts.FnirtWarp = filepath.Join(p.scratchDir, "warpfield.nii.gz")

	if _, err := p.run.Run(ctx, p.scratchDir, p.cfg.Tools.WbCommand,
		"-convert-warpfield",
		"-from-itk", p.artifacts.ITKField,
		"-to-fnirt", p.artifacts.FnirtWarp, p.inv.SourceImage()); err != nil {
		return err
	}

	if err := nifti.SetWarpIntent(p.artifacts.FnirtWarp, p.artifacts.FnirtWarp); err != nil {
		return err
	}
	return nil
}

// convertAffine converts the disassembled affine matrix from ITK to FLIRT
// convention using the source and reference images for coordinate-system
// context, then checks the result is a usable transform matrix.
func (p *Pipeline) convertAffine(ctx context.Context) error {
	p.artifacts.FlirtMatrix = filepath.Join(p.scratchDir, "affine_flirt.mat")

	if _, err := p.run.Run(ctx, p.scratchDir, p.cfg.Tools.C3DAffineTool,
		"-ref", p.inv.ReferenceImage(),
		"-src", p.inv.SourceImage(),
		"-itk", p.artifacts.ITKAffine,
		"-ras2fsl",
		"-o", p.artifacts.FlirtMatrix); err != nil {
		return err
	}

	m, err := affine.ReadMatrix(p.artifacts.FlirtMatrix)
	if err != nil {
		return err
	}
	if err := affine.Validate(m); err != nil {
		return fmt.Errorf("converted affine is not usable: %v", err)
	}
	return nil
}

// compose combines the converted affine and displacement field into the
// final transform on the reference image grid. The affine is applied as a
// pre- or post-matrix depending on the conversion direction, and the field
// is declared as relative displacements (the FNIRT convention it was
// converted into) rather than left to the tool's inference. The output is
// written beside the input transform and intent-tagged like the field.
func (p *Pipeline) compose(ctx context.Context) error {
	matrixArg := fmt.Sprintf("--%s=%s", p.inv.Direction.MatrixRole(), p.artifacts.FlirtMatrix)

	if _, err := p.run.Run(ctx, p.workDir, p.cfg.Tools.Convertwarp,
		"--ref="+p.inv.ReferenceImage(),
		matrixArg,
		"--warp1="+p.artifacts.FnirtWarp,
		"--out="+p.artifacts.Output,
		"--rel"); err != nil {
		return err
	}

	if err := nifti.SetWarpIntent(p.artifacts.Output, p.artifacts.Output); err != nil {
		return err
	}
	return nil
}

// stepf prints a progress line when verbose output is enabled.
func (p *Pipeline) stepf(format string, args ...interface{}) {
	if p.cfg.Pipeline.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// toAbsolute converts a path argument to an absolute path by resolving its
// containing directory. If the directory cannot be resolved (for example
// because it does not exist) the path is left as given; the existence check
// that follows produces the user-facing error.
func toAbsolute(path string) string {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return path
	}
	return filepath.Join(resolved, filepath.Base(path))
}
