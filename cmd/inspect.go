// File: cmd/inspect.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashdelta/internal/device"
	"github.com/deploymenttheory/go-squashdelta/internal/services"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image-path]",
	Short: "Print the superblock and compressed-block summary of one image",
	Long: `Inspect parses a single SquashFS 4.0 image the same way patch
generation does and prints what it found, without writing anything.

Examples:
  # Show superblock fields and block counts
  sqdelta inspect rootfs.squashfs

  # Include per-block offsets and hashes
  sqdelta inspect rootfs.squashfs --blocks`,

	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(args[0]); err != nil {
			cobra.CheckErr(err)
		}
	},
}

var inspectBlocks bool

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectBlocks, "blocks", false, "list every collected block descriptor")
}

func runInspect(imagePath string) error {
	logger := newLogger()

	src, err := device.Open(imagePath)
	if err != nil {
		return err
	}

	collector := services.NewCollector(logger)
	run, err := collector.Collect(src)
	if err != nil {
		return err
	}

	sb := run.Superblock
	fmt.Printf("Image:            %s (%d bytes)\n", src.Path(), src.Size())
	fmt.Printf("Created:          %s\n", time.Unix(int64(sb.MkfsTime), 0).UTC().Format(time.RFC3339))
	fmt.Printf("Compression:      %s\n", sb.Compression)
	fmt.Printf("Block size:       %d (log %d)\n", sb.BlockSize, sb.BlockLog)
	fmt.Printf("Inodes:           %d\n", sb.Inodes)
	fmt.Printf("Fragments:        %d\n", sb.Fragments)
	fmt.Printf("Bytes used:       %d\n", sb.BytesUsed)
	fmt.Printf("Inode table:      0x%x\n", sb.InodeTableStart)
	fmt.Printf("Fragment table:   0x%x\n", sb.FragmentTableStart)

	var compressedBytes uint64
	for _, block := range run.Blocks {
		compressedBytes += uint64(block.Length)
	}
	fmt.Printf("Compressed blocks: %d (%d bytes)\n", len(run.Blocks), compressedBytes)

	if inspectBlocks {
		fmt.Printf("\n%-12s %-10s %s\n", "OFFSET", "LENGTH", "HASH")
		for _, block := range run.Blocks {
			fmt.Printf("0x%-10x %-10d 0x%08x\n", block.Offset, block.Length, block.Hash)
		}
	}
	return nil
}
