package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rcowham/cvs2svn-go/model"
)

// idGenPath is the workDir-relative file every id-minting pass reads
// and rewrites, so ids stay globally unique across passes without any
// pass holding another pass's in-memory state (§5).
const idGenFile = "idgen.state"

// LoadIDGen reads the last-allocated id from workDir, or returns a
// fresh generator if no pass has minted an id yet.
func LoadIDGen(workDir string) (*model.IDGen, error) {
	data, err := os.ReadFile(idGenPath(workDir))
	if os.IsNotExist(err) {
		return &model.IDGen{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", idGenFile, err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("store: malformed %s: %w", idGenFile, err)
	}
	gen := &model.IDGen{}
	gen.Restore(model.ID(n))
	return gen, nil
}

// SaveIDGen persists gen's current high-water mark so the next pass to
// mint ids continues from it.
func SaveIDGen(workDir string, gen *model.IDGen) error {
	return os.WriteFile(idGenPath(workDir), []byte(strconv.FormatInt(int64(gen.Peek()), 10)), 0o644)
}

func idGenPath(workDir string) string {
	return workDir + string(os.PathSeparator) + idGenFile
}
