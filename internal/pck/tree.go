package pck

import (
	"sort"
	"strings"
)

// nilIndex marks a Node with no backing index entry — a folder implied by
// a deeper path component but never itself listed in the index.
const nilIndex = -1

// Node is one element of the directory tree, stored in a flat arena so
// parent/child references are plain indices rather than pointers (spec §9
// DESIGN-NOTES: "arena of nodes plus indices").
type Node struct {
	Name     string
	Kind     Kind // KindFile or KindFolder; never KindTail
	Parent   int  // index into Tree.Nodes, nilIndex for the root
	Children []int
	// EntryIndex is the index into the Entries slice this node was built
	// from, or nilIndex for a folder synthesized because a deeper path
	// referenced it without an index entry of its own.
	EntryIndex int
}

// Tree is a rooted directory tree plus the flat entry list it was built
// from. Entries is the slice passed to BuildTree unchanged, so it may end
// with the tail entry; no node refers to a tail entry.
type Tree struct {
	Nodes   []Node
	Entries []Entry
	Root    int
}

func (t *Tree) newNode(name string, kind Kind, parent, entryIndex int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Name:       name,
		Kind:       kind,
		Parent:     parent,
		EntryIndex: entryIndex,
	})
	if parent != nilIndex {
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	}
	return idx
}

func splitPath(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, c := range parts {
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func childByName(t *Tree, parent int, name string) int {
	for _, c := range t.Nodes[parent].Children {
		if strings.EqualFold(t.Nodes[c].Name, name) {
			return c
		}
	}
	return nilIndex
}

// BuildTree implements spec §4.8 Build: group flat, index-ordered entries
// (tail excluded) by directory prefix, descending or creating intermediate
// folder nodes as needed, attaching the final path component as a leaf
// (file) or folder node according to the entry's kind. Child order within
// every node is case-insensitive lexical. A repeated path is reported as
// *DuplicatePathError.
func BuildTree(entries []Entry) (*Tree, error) {
	t := &Tree{Entries: entries}
	t.Root = t.newNode("", KindFolder, nilIndex, nilIndex)

	seen := make(map[string]bool, len(entries))

	for i, e := range entries {
		if e.Kind == KindTail {
			continue
		}
		parts := splitPath(e.Path)
		if len(parts) == 0 {
			continue
		}
		key := strings.ToLower(strings.Join(parts, "/"))
		if seen[key] {
			return nil, &DuplicatePathError{Path: e.Path}
		}
		seen[key] = true

		cur := t.Root
		for _, comp := range parts[:len(parts)-1] {
			child := childByName(t, cur, comp)
			if child == nilIndex {
				child = t.newNode(comp, KindFolder, cur, nilIndex)
			}
			cur = child
		}
		last := parts[len(parts)-1]
		existing := childByName(t, cur, last)
		if existing != nilIndex {
			// An intermediate directory created implicitly by a deeper
			// path is now backed by its own entry.
			t.Nodes[existing].Kind = e.Kind
			t.Nodes[existing].EntryIndex = i
			continue
		}
		t.newNode(last, e.Kind, cur, i)
	}

	sortChildrenRecursive(t, t.Root)
	return t, nil
}

func sortChildrenRecursive(t *Tree, n int) {
	children := t.Nodes[n].Children
	sort.SliceStable(children, func(i, j int) bool {
		return strings.ToLower(t.Nodes[children[i]].Name) < strings.ToLower(t.Nodes[children[j]].Name)
	})
	for _, c := range children {
		if t.Nodes[c].Kind == KindFolder {
			sortChildrenRecursive(t, c)
		}
	}
}

// Path returns the full, '/'-joined path of node n from the root.
func (t *Tree) Path(n int) string {
	var parts []string
	for cur := n; cur != t.Root && cur != nilIndex; cur = t.Nodes[cur].Parent {
		parts = append([]string{t.Nodes[cur].Name}, parts...)
	}
	return strings.Join(parts, "/")
}

// Lookup resolves a '/'-separated path to a node index, or nilIndex if no
// such path exists.
func (t *Tree) Lookup(path string) int {
	cur := t.Root
	for _, comp := range splitPath(path) {
		cur = childByName(t, cur, comp)
		if cur == nilIndex {
			return nilIndex
		}
	}
	return cur
}

// FlattenEntry is one record produced by Flatten: the node it came from,
// plus the offset the caller should assign its payload.
type FlattenEntry struct {
	Node  int
	Entry Entry
}

// Flatten implements spec §4.8 Reverse: depth-first, parent before
// children, folders before files at the same level, children in
// case-insensitive lexical order (children are already stored in that
// order by BuildTree; this only re-buckets folders ahead of files). offsetFor
// assigns each non-folder entry's on-disk payload offset; folder entries
// carry offset 0. A fresh tail entry is appended last.
func (t *Tree) Flatten(offsetFor func(node int) uint64) []Entry {
	var out []Entry
	var walk func(n int)
	walk = func(n int) {
		if n != t.Root {
			e := t.entryFor(n)
			if e.Kind == KindFile {
				e.Offset = offsetFor(n)
			}
			out = append(out, e)
		}
		children := t.Nodes[n].Children
		var folders, files []int
		for _, c := range children {
			if t.Nodes[c].Kind == KindFolder {
				folders = append(folders, c)
			} else {
				files = append(files, c)
			}
		}
		for _, c := range folders {
			walk(c)
		}
		for _, c := range files {
			walk(c)
		}
	}
	walk(t.Root)
	out = append(out, Entry{Kind: KindTail})
	return out
}

func (t *Tree) entryFor(n int) Entry {
	node := t.Nodes[n]
	if node.EntryIndex != nilIndex {
		e := t.Entries[node.EntryIndex]
		e.Path = t.Path(n)
		return e
	}
	return Entry{Path: t.Path(n), Kind: KindFolder}
}
