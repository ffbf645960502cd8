// File: internal/services/delta_service.go
package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashdelta/internal/device"
	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// DeltaService drives a whole patch generation: collect both images,
// deduplicate across them, expand both into scratch files, and wrap
// the external diff tool's output into the patch file.
type DeltaService struct {
	cfg    *device.Config
	logger *logrus.Logger
}

// NewDeltaService builds a driver around the resolved configuration.
func NewDeltaService(cfg *device.Config, logger *logrus.Logger) *DeltaService {
	return &DeltaService{cfg: cfg, logger: logger}
}

// Generate produces a patch transforming the image at sourcePath into
// the image at targetPath, written to patchPath.
func (s *DeltaService) Generate(ctx context.Context, sourcePath, targetPath, patchPath string) error {
	source, err := device.Open(sourcePath)
	if err != nil {
		return err
	}
	target, err := device.Open(targetPath)
	if err != nil {
		return err
	}

	collector := NewCollector(s.logger)
	sourceRun, err := collector.Collect(source)
	if err != nil {
		return err
	}
	targetRun, err := collector.Collect(target)
	if err != nil {
		return err
	}

	sourceBlocks, targetBlocks := DeduplicateAcross(sourceRun.Blocks, targetRun.Blocks)
	s.logger.WithFields(logrus.Fields{
		"source_blocks": len(sourceBlocks),
		"target_blocks": len(targetBlocks),
	}).Info("cross-image deduplication done")

	runID := uuid.New().String()
	sourceExpanded := filepath.Join(s.cfg.ScratchDir, fmt.Sprintf("sqdelta-%s-source", runID))
	targetExpanded := filepath.Join(s.cfg.ScratchDir, fmt.Sprintf("sqdelta-%s-target", runID))
	defer os.Remove(sourceExpanded)
	defer os.Remove(targetExpanded)

	expander := NewExpander(collector.Codec(), s.logger)
	if err := expandToFile(expander, source, sourceRun.Superblock, sourceBlocks, sourceExpanded); err != nil {
		return err
	}
	collector.Codec().Reset()
	if err := expandToFile(expander, target, targetRun.Superblock, targetBlocks, targetExpanded); err != nil {
		return err
	}

	patch, err := os.Create(patchPath)
	if err != nil {
		return err
	}
	defer patch.Close()

	if err := WriteDeltaHeader(patch, collector.Codec().CompressionValue(), uint32(len(sourceBlocks))); err != nil {
		return err
	}
	if err := WriteBlockIndex(patch, sourceBlocks); err != nil {
		return err
	}

	if err := s.runDiff(ctx, sourceExpanded, targetExpanded, patch); err != nil {
		return err
	}
	return patch.Sync()
}

// expandToFile writes one expanded image into a fresh scratch file.
func expandToFile(e *Expander, src interfaces.ByteSource, sb *types.Superblock, blocks []types.BlockDescriptor, path string) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := e.Expand(src, sb, blocks, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// runDiff launches the external diff tool with its stdout appended to
// the patch file, past the header and index already written.
func (s *DeltaService) runDiff(ctx context.Context, sourceExpanded, targetExpanded string, patch *os.File) error {
	args := append(append([]string{}, s.cfg.DiffArgs...), sourceExpanded, targetExpanded)
	cmd := exec.CommandContext(ctx, s.cfg.DiffTool, args...)
	cmd.Stdout = patch
	cmd.Stderr = os.Stderr

	s.logger.WithFields(logrus.Fields{
		"tool": s.cfg.DiffTool,
		"args": args,
	}).Debug("running diff tool")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrDiffToolFailed, s.cfg.DiffTool, err)
	}
	return nil
}
