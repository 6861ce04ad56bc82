package model

import "strings"

// PathTree tracks which CVSPaths are currently live on one line of
// development, as a directory tree, answering "does this path exist
// here" and "what paths live under this directory" without re-deriving
// the answer from the full revision history each time. No pass or the
// pipeline builds one; only this package's tests exercise it.
//
// Adapted from the per-branch file tree the teacher (gitp4transfer)
// keeps to reconcile renames/deletes/copies against a git branch's
// current contents; here it tracks a CVS line-of-development's contents
// instead of a git branch's.
type PathTree struct {
	Name     string
	Path     string
	IsFile   bool
	Children []*PathTree
}

// NewPathTree returns the root of a new, empty tree.
func NewPathTree() *PathTree {
	return &PathTree{}
}

// AddFile registers a live file at the given slash-separated path.
func (n *PathTree) AddFile(path string) {
	n.addSub(path, path)
}

// RemoveFile removes a previously-registered file.
func (n *PathTree) RemoveFile(path string) {
	n.removeSub(path, path)
}

// Exists reports whether a single file is currently live.
func (n *PathTree) Exists(path string) bool {
	dir := ""
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir = path[:i]
	}
	for _, f := range n.Files(dir) {
		if f == path {
			return true
		}
	}
	return false
}

// Files returns every live file under dirName (dirName == "" means the
// whole tree).
func (n *PathTree) Files(dirName string) []string {
	if n.Name == "" && dirName == "" {
		return n.childFiles()
	}
	parts := strings.SplitN(dirName, "/", 2)
	for _, c := range n.Children {
		if c.Name != parts[0] {
			continue
		}
		if len(parts) == 1 {
			if c.IsFile {
				return []string{c.Path}
			}
			return c.childFiles()
		}
		return c.Files(parts[1])
	}
	return nil
}

// Clone returns a deep copy, used when a new line-of-development inherits
// its parent's contents at the point of a branch/tag creation.
func (n *PathTree) Clone() *PathTree {
	c := &PathTree{Name: n.Name, Path: n.Path, IsFile: n.IsFile}
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return c
}

func (n *PathTree) childFiles() []string {
	var files []string
	for _, c := range n.Children {
		if c.IsFile {
			files = append(files, c.Path)
		} else {
			files = append(files, c.childFiles()...)
		}
	}
	return files
}

func (n *PathTree) addSub(fullPath, subPath string) {
	parts := strings.SplitN(subPath, "/", 2)
	for _, c := range n.Children {
		if c.Name == parts[0] {
			if len(parts) > 1 {
				c.addSub(fullPath, parts[1])
			}
			return
		}
	}
	if len(parts) == 1 {
		n.Children = append(n.Children, &PathTree{Name: parts[0], IsFile: true, Path: fullPath})
		return
	}
	child := &PathTree{Name: parts[0]}
	n.Children = append(n.Children, child)
	child.addSub(fullPath, parts[1])
}

func (n *PathTree) removeSub(fullPath, subPath string) {
	parts := strings.SplitN(subPath, "/", 2)
	for i, c := range n.Children {
		if c.Name != parts[0] {
			continue
		}
		if len(parts) == 1 {
			n.Children[i] = n.Children[len(n.Children)-1]
			n.Children = n.Children[:len(n.Children)-1]
			return
		}
		c.removeSub(fullPath, parts[1])
		return
	}
}
