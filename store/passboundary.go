package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// PassDir returns the directory a pass should write its working files
// into before committing them: workDir/.pass-name.tmp. It is created if
// absent.
func PassDir(workDir, pass string) (string, error) {
	dir := filepath.Join(workDir, "."+pass+".tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: creating working dir for pass %s: %w", pass, err)
	}
	return dir, nil
}

// Commit atomically publishes a pass's working directory: it renames
// workDir/.pass-name.tmp to workDir/pass-name, replacing any previous
// (stale, from an interrupted run) directory of that name first. Once
// Commit returns nil the pass is durably done and a resumed run will
// skip it (§5: "a successful pass atomically renames its outputs into
// place so that an interrupted run can be resumed from the last
// completed pass").
func Commit(workDir, pass string) error {
	tmp := filepath.Join(workDir, "."+pass+".tmp")
	final := filepath.Join(workDir, pass)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("store: clearing stale output for pass %s: %w", pass, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("store: committing pass %s: %w", pass, err)
	}
	return nil
}

// Done reports whether pass has already been committed in workDir, so
// pipeline.Run can skip straight past it on resume.
func Done(workDir, pass string) bool {
	final := filepath.Join(workDir, pass)
	info, err := os.Stat(final)
	return err == nil && info.IsDir()
}

// DiscardIncomplete removes a pass's working directory without
// committing it, for the "partial outputs from the interrupted pass are
// discarded on restart" rule in §5.
func DiscardIncomplete(workDir, pass string) error {
	tmp := filepath.Join(workDir, "."+pass+".tmp")
	return os.RemoveAll(tmp)
}
