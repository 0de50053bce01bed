package condition

import (
	"github.com/botforge/scenario/pkg/value"
)

// TreeEntry is a condition attached to a scenario, stored at the tree node
// selected by the condition's search path.
type TreeEntry struct {
	ScenarioID int64
	Hash       string
	Compiled   *Compiled
}

// Tree is the nested prefix index over flat equality atoms. Interior levels
// are keyed first by field name, then by the literal value for that field;
// conditions whose search path is exhausted (or empty) sit on the node's
// conditions list and are re-checked with their full predicate on lookup.
type Tree struct {
	root *treeNode
}

type treeNode struct {
	conditions []*TreeEntry
	children   map[string]map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]map[string]*treeNode)}
}

// NewTree returns an empty search tree.
func NewTree() *Tree {
	return &Tree{root: newTreeNode()}
}

// Add places a compiled condition for a scenario into the tree, walking the
// search path in sorted-field order. Duplicate (hash, scenario) pairs at the
// destination node are suppressed.
func (t *Tree) Add(c *Compiled, scenarioID int64) {
	node := t.root
	for _, atom := range c.SearchPath {
		byValue, ok := node.children[atom.Field]
		if !ok {
			byValue = make(map[string]*treeNode)
			node.children[atom.Field] = byValue
		}
		key := value.Stringify(atom.Value)
		child, ok := byValue[key]
		if !ok {
			child = newTreeNode()
			byValue[key] = child
		}
		node = child
	}

	for _, existing := range node.conditions {
		if existing.Hash == c.Hash && existing.ScenarioID == scenarioID {
			return
		}
	}
	node.conditions = append(node.conditions, &TreeEntry{
		ScenarioID: scenarioID,
		Hash:       c.Hash,
		Compiled:   c,
	})
}

// Search walks the tree guided by the event's top-level fields and returns
// the deduped, order-preserving scenario ids whose predicates match.
func (t *Tree) Search(event map[string]any) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	t.search(t.root, event, &ids, seen)
	return ids
}

func (t *Tree) search(node *treeNode, event map[string]any, ids *[]int64, seen map[int64]struct{}) {
	for _, entry := range node.conditions {
		if _, dup := seen[entry.ScenarioID]; dup {
			continue
		}
		if entry.Compiled.Match(event) {
			seen[entry.ScenarioID] = struct{}{}
			*ids = append(*ids, entry.ScenarioID)
		}
	}
	for field, byValue := range node.children {
		ev, ok := event[field]
		if !ok {
			continue
		}
		child, ok := byValue[value.Stringify(ev)]
		if !ok {
			continue
		}
		t.search(child, event, ids, seen)
	}
}

// Size returns the total number of stored conditions, mostly for logging.
func (t *Tree) Size() int {
	return countConditions(t.root)
}

func countConditions(node *treeNode) int {
	total := len(node.conditions)
	for _, byValue := range node.children {
		for _, child := range byValue {
			total += countConditions(child)
		}
	}
	return total
}
