package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeAddAndSearch(t *testing.T) {
	tree := NewTree()

	ping := mustCompile(t, `$type == "message" and $text == "/ping"`)
	start := mustCompile(t, `$type == "message" and $text == "/start"`)
	callback := mustCompile(t, `$type == "callback"`)
	catchAll := mustCompile(t, `$system.tenant_id == 1`) // empty search path → root

	tree.Add(ping, 10)
	tree.Add(start, 20)
	tree.Add(callback, 30)
	tree.Add(catchAll, 40)
	require.Equal(t, 4, tree.Size())

	ids := tree.Search(map[string]any{
		"system": map[string]any{"tenant_id": 1},
		"type":   "message",
		"text":   "/ping",
	})
	assert.ElementsMatch(t, []int64{10, 40}, ids)

	ids = tree.Search(map[string]any{
		"system": map[string]any{"tenant_id": 1},
		"type":   "callback",
	})
	assert.ElementsMatch(t, []int64{30, 40}, ids)

	ids = tree.Search(map[string]any{"type": "unknown"})
	assert.Empty(t, ids)
}

func TestTreeSuppressesDuplicates(t *testing.T) {
	tree := NewTree()
	c := mustCompile(t, `$type == "message"`)

	tree.Add(c, 10)
	tree.Add(c, 10)
	assert.Equal(t, 1, tree.Size())

	// Same condition for a different scenario is a distinct entry.
	tree.Add(c, 20)
	assert.Equal(t, 2, tree.Size())
}

func TestTreeLeafPredicateStillChecked(t *testing.T) {
	// The equality atom routes to the right node, but the full predicate
	// (including non-indexed clauses) must still hold.
	tree := NewTree()
	c := mustCompile(t, `$type == "message" and $system.tenant_id == 7`)
	tree.Add(c, 10)

	ids := tree.Search(map[string]any{
		"type":   "message",
		"system": map[string]any{"tenant_id": 8},
	})
	assert.Empty(t, ids)

	ids = tree.Search(map[string]any{
		"type":   "message",
		"system": map[string]any{"tenant_id": 7},
	})
	assert.Equal(t, []int64{10}, ids)
}

func TestTreeNumericValueCoercion(t *testing.T) {
	// Atom value 1 (number) must match an event carrying int 1.
	tree := NewTree()
	tree.Add(mustCompile(t, `$priority == 1`), 10)

	ids := tree.Search(map[string]any{"priority": 1})
	assert.Equal(t, []int64{10}, ids)

	ids = tree.Search(map[string]any{"priority": float64(1)})
	assert.Equal(t, []int64{10}, ids)
}

func TestTreeScenarioDedupAcrossTriggers(t *testing.T) {
	tree := NewTree()
	tree.Add(mustCompile(t, `$a == 1`), 10)
	tree.Add(mustCompile(t, `$b == 2`), 10)

	ids := tree.Search(map[string]any{"a": 1, "b": 2})
	assert.Equal(t, []int64{10}, ids)
}
