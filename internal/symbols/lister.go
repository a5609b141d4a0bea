package symbols

import (
	"path/filepath"
)

// Lister adapts an Index to tools.SymbolListerFunc, rescanning the root on
// every call so read_file {symbols:true} sees edits made since the last
// plan generation without needing explicit cache invalidation wiring.
type Lister struct {
	root string
}

// NewLister returns a lister rooted at root (the workspace root).
func NewLister(root string) *Lister {
	return &Lister{root: root}
}

// List implements tools.SymbolListerFunc.
func (l *Lister) List(absPath string) (string, error) {
	idx, err := Scan(l.root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(l.root, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)
	return idx.CompactTable(rel), nil
}
