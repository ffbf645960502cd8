// File: internal/services/dedup.go
package services

import (
	"sort"

	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// DeduplicateAcross removes every block that appears bit-identically
// (by length and hash) in both images' lists. Equal-key runs are
// erased from both sides in full, so a block repeated on one side is
// still dropped when the other side carries it at all. The surviving
// lists come back sorted by ascending offset, ready for expansion.
func DeduplicateAcross(source, target []types.BlockDescriptor) ([]types.BlockDescriptor, []types.BlockDescriptor) {
	byLengthHash := func(blocks []types.BlockDescriptor) func(i, j int) bool {
		return func(i, j int) bool {
			if blocks[i].Length != blocks[j].Length {
				return blocks[i].Length < blocks[j].Length
			}
			return blocks[i].Hash < blocks[j].Hash
		}
	}
	sort.Slice(source, byLengthHash(source))
	sort.Slice(target, byLengthHash(target))

	keptSource := make([]types.BlockDescriptor, 0, len(source))
	keptTarget := make([]types.BlockDescriptor, 0, len(target))

	i, j := 0, 0
	for i < len(source) && j < len(target) {
		switch compareKeys(source[i], target[j]) {
		case 0:
			key := source[i]
			for i < len(source) && compareKeys(source[i], key) == 0 {
				i++
			}
			for j < len(target) && compareKeys(target[j], key) == 0 {
				j++
			}
		case -1:
			keptSource = append(keptSource, source[i])
			i++
		default:
			keptTarget = append(keptTarget, target[j])
			j++
		}
	}
	keptSource = append(keptSource, source[i:]...)
	keptTarget = append(keptTarget, target[j:]...)

	byOffset := func(blocks []types.BlockDescriptor) func(i, j int) bool {
		return func(i, j int) bool { return blocks[i].Offset < blocks[j].Offset }
	}
	sort.Slice(keptSource, byOffset(keptSource))
	sort.Slice(keptTarget, byOffset(keptTarget))
	return keptSource, keptTarget
}

// compareKeys orders descriptors by (length, hash).
func compareKeys(a, b types.BlockDescriptor) int {
	switch {
	case a.Length < b.Length:
		return -1
	case a.Length > b.Length:
		return 1
	case a.Hash < b.Hash:
		return -1
	case a.Hash > b.Hash:
		return 1
	default:
		return 0
	}
}
