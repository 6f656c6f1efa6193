package engine

import "github.com/sakif/spacesync/internal/model"

// Decision is the outcome of comparing an incoming record with the stored one.
type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Resolve applies last-write-wins.
//
//   - no stored version (existing == nil): Accept. This is how records are created.
//   - stored version present: Accept only if incoming.UpdatedAt is strictly
//     after existing.UpdatedAt.
//
// Equal timestamps Reject, so the version that reached the server first is
// kept and re-sending an already accepted record is a no-op. Both timestamps
// are normalised before the comparison.
func Resolve(incoming, existing *model.SyncMeta) Decision {
	if existing == nil {
		return Accept
	}
	in := model.NormalizeTime(incoming.UpdatedAt)
	cur := model.NormalizeTime(existing.UpdatedAt)
	if in.After(cur) {
		return Accept
	}
	return Reject
}
