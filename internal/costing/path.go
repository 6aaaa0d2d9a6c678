package costing

// Path is the set of recipe ids visited along one recursion path. It is
// immutable: With returns an extended copy that shares the parent, so sibling
// branches never observe each other's visits. The nil Path is empty.
type Path struct {
	parent *Path
	id     uint
	depth  int
}

// With returns a path that also contains id.
func (p *Path) With(id uint) *Path {
	return &Path{parent: p, id: id, depth: p.Len() + 1}
}

// Contains reports whether id was visited on this path.
func (p *Path) Contains(id uint) bool {
	for node := p; node != nil; node = node.parent {
		if node.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of recipes on the path.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return p.depth
}

// IDs lists the path from the root recipe to the most recent one.
func (p *Path) IDs() []uint {
	ids := make([]uint, p.Len())
	for node, i := p, p.Len()-1; node != nil; node, i = node.parent, i-1 {
		ids[i] = node.id
	}
	return ids
}
