package model

import "testing"

func TestSymbolStatsPreferredParentTieBreak(t *testing.T) {
	s := NewSymbolStats(1)
	s.PossibleParents[ID(5)] = 3
	s.PossibleParents[ID(2)] = 3
	s.PossibleParents[ID(9)] = 1
	if got := s.PreferredParent(); got != ID(2) {
		t.Fatalf("PreferredParent() = %d, want 2 (lowest id among tied counts)", got)
	}
}

func TestSymbolStatsPreferredParentSingleWinner(t *testing.T) {
	s := NewSymbolStats(1)
	s.PossibleParents[ID(5)] = 1
	s.PossibleParents[ID(2)] = 4
	if got := s.PreferredParent(); got != ID(2) {
		t.Fatalf("PreferredParent() = %d, want 2", got)
	}
}

func TestPathTreeAddRemoveExists(t *testing.T) {
	tree := NewPathTree()
	tree.AddFile("src/main.c")
	tree.AddFile("README")
	if !tree.Exists("src/main.c") {
		t.Fatal("expected src/main.c to exist")
	}
	if !tree.Exists("README") {
		t.Fatal("expected README to exist")
	}
	if tree.Exists("src/missing.c") {
		t.Fatal("did not expect src/missing.c to exist")
	}
	tree.RemoveFile("src/main.c")
	if tree.Exists("src/main.c") {
		t.Fatal("expected src/main.c to be removed")
	}
	files := tree.Files("")
	if len(files) != 1 || files[0] != "README" {
		t.Fatalf("Files(\"\") = %v, want [README]", files)
	}
}

func TestPathTreeClone(t *testing.T) {
	tree := NewPathTree()
	tree.AddFile("a/b/c.txt")
	clone := tree.Clone()
	clone.RemoveFile("a/b/c.txt")
	if !tree.Exists("a/b/c.txt") {
		t.Fatal("original tree mutated by clone removal")
	}
	if clone.Exists("a/b/c.txt") {
		t.Fatal("clone still has removed file")
	}
}

func TestChangesetAddDependencyIgnoresSelfAndZero(t *testing.T) {
	cs := NewRevisionChangeset(7)
	cs.AddDependency(7)
	cs.AddDependency(NoID)
	cs.AddDependency(3)
	if len(cs.Dependencies) != 1 || !cs.Dependencies[3] {
		t.Fatalf("Dependencies = %v, want {3: true}", cs.Dependencies)
	}
}
