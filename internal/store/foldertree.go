package store

// folderTree indexes one user's folders by id and by parent.
type folderTree struct {
	byID     map[string]Folder
	children map[string][]string
}

func newFolderTree(folders []Folder) folderTree {
	tree := folderTree{
		byID:     make(map[string]Folder, len(folders)),
		children: make(map[string][]string),
	}
	for _, folder := range folders {
		tree.byID[folder.ID] = folder
	}
	for _, folder := range folders {
		if folder.ParentID == nil {
			continue
		}
		// Orphans (parent missing from this user's set) behave as roots.
		if _, ok := tree.byID[*folder.ParentID]; !ok {
			continue
		}
		tree.children[*folder.ParentID] = append(tree.children[*folder.ParentID], folder.ID)
	}
	return tree
}

// descendantDepths returns every folder below rootID keyed by its distance
// from rootID (children are 1). A visited set keeps corrupt data from looping.
func (t folderTree) descendantDepths(rootID string) map[string]int {
	depths := make(map[string]int)
	visited := map[string]bool{rootID: true}
	frontier := []string{rootID}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, child := range t.children[id] {
				if visited[child] {
					continue
				}
				visited[child] = true
				depths[child] = depth
				next = append(next, child)
			}
		}
		frontier = next
	}
	return depths
}

// planMove validates moving id under newParentID (nil for root) and returns
// the new level of the folder and of each of its descendants.
func (t folderTree) planMove(id string, newParentID *string) (map[string]int, error) {
	if _, ok := t.byID[id]; !ok {
		return nil, ErrNotFound
	}

	descendants := t.descendantDepths(id)
	level := 1
	if newParentID != nil {
		if *newParentID == id {
			return nil, ErrInvalidMove
		}
		parent, ok := t.byID[*newParentID]
		if !ok {
			return nil, ErrNotFound
		}
		if _, cycle := descendants[parent.ID]; cycle {
			return nil, ErrInvalidMove
		}
		level = parent.Level + 1
	}

	height := 0
	for _, depth := range descendants {
		if depth > height {
			height = depth
		}
	}
	if level+height > MaxFolderDepth {
		return nil, ErrDepthExceeded
	}

	levels := make(map[string]int, len(descendants)+1)
	levels[id] = level
	for descendant, depth := range descendants {
		levels[descendant] = level + depth
	}
	return levels, nil
}

// deleteOrder lists id and its descendants so that every child precedes its parent.
func (t folderTree) deleteOrder(id string) []string {
	order := make([]string, 0)
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(current string) {
		if visited[current] {
			return
		}
		visited[current] = true
		for _, child := range t.children[current] {
			walk(child)
		}
		order = append(order, current)
	}
	walk(id)
	return order
}
