package internal

import (
	"testing"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/stretchr/testify/require"
)

func TestGenerateUniqueConnID_RetriesUntilUnique(t *testing.T) {
	req := require.New(t)
	seen := make(map[callrelay.ConnID]struct{})
	calls := 0

	// Given the first two candidates are rejected
	id := GenerateUniqueConnID(func(id callrelay.ConnID) bool {
		calls++
		seen[id] = struct{}{}
		return calls > 2
	})

	// Then the third one is returned
	req.Equal(3, calls)
	req.Contains(seen, id)
	req.Len(seen, 3)
}
