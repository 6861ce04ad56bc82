package model

// Project is a root within the CVS archive: one directory tree that is
// converted as a unit. Symbol classification (§4.3) is consistent across
// every file of one Project.
type Project struct {
	ID        ID
	Name      string
	CVSRoot   string // filesystem path to the project's root in the archive
	TrunkPath string // SVN-side trunk path, e.g. "trunk"
}

// CVSPathKind distinguishes a file from a directory in the archive tree.
type CVSPathKind int

const (
	CVSPathFile CVSPathKind = iota
	CVSPathDirectory
)

// CVSPath is a file or directory in the archive, identified by a stable
// path id independent of any line-of-development. Two files with the same
// name on different branches share one CVSPath; their CVSRevisions differ.
type CVSPath struct {
	ID        ID
	ProjectID ID
	Kind      CVSPathKind
	Path      string // slash-separated, project-relative, no leading slash
	ParentID  ID     // NoID for the project root
}

// GetID implements store.Record.
func (p *Project) GetID() ID { return p.ID }

// GetID implements store.Record.
func (p *CVSPath) GetID() ID { return p.ID }
