package model

import (
	"crypto/sha1"
	"encoding/binary"
)

// Metadata is author + log-message text, interned by a 20-byte digest so
// that many revisions committed with identical wording (the common case
// for one CVS commit spanning several files) share one record (§3, §4.1).
type Metadata struct {
	ID     ID
	Digest [sha1.Size]byte
	Author string
	Log    string
}

// DigestKey computes the interning key for a candidate metadata record.
// projectID and branch are folded in only when cross-project/cross-branch
// commits are disallowed (config.CrossProjectCommits /
// config.CrossBranchCommits), per §4.1 and §6's configuration surface.
func DigestKey(author, log string, projectID ID, branch string, includeProject, includeBranch bool) [sha1.Size]byte {
	h := sha1.New()
	h.Write([]byte(author))
	h.Write([]byte{0})
	h.Write([]byte(log))
	if includeProject {
		h.Write([]byte{0})
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(projectID))
		h.Write(buf[:])
	}
	if includeBranch {
		h.Write([]byte{0})
		h.Write([]byte(branch))
	}
	var out [sha1.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// GetID implements store.Record.
func (m *Metadata) GetID() ID { return m.ID }
