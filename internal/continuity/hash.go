package continuity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Hash computes the deterministic snapshot digest over the exact inputs
// that determine a snapshot: client, depth, window start, and the candidate
// id set. Ids are sorted first so fetch order cannot perturb the key.
func Hash(clientID string, depth types.Depth, sinceAt time.Time, ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	h := sha256.New()
	fmt.Fprintf(h, "v1|%s|%s|%d|", clientID, depth, sinceAt.Unix())
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
