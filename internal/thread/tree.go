// Package thread reconstructs nested comment threads from the flat records
// the stores hand back. Everything in here is pure: no I/O, and the input
// slice is never mutated.
package thread

import (
	"sort"

	"github.com/aniview/aniview/backend/internal/models"
)

// MaxDepth is how deep a thread may nest before replies are flattened into
// their nearest visible ancestor. Clients render at most this many levels.
const MaxDepth = 5

// Node wraps a Comment with its resolved replies. Nodes are fresh values
// built by Build; attaching replies never touches the source Comment.
type Node struct {
	models.Comment
	Replies []*Node `json:"replies"`
}

// Build turns an unordered flat slice of comments into a forest of root
// nodes with nested replies.
//
// A comment becomes a root when its ParentID is nil, when the parent is not
// part of the input (a reply whose parent fell outside the loaded scope is
// promoted rather than dropped), or when its ancestor chain loops back to
// itself. Root order preserves input order, so the caller's query ordering
// carries through. Replies are sorted ascending by CreatedAt with ID as the
// tie-breaker, which makes the output independent of input permutation.
func Build(comments []models.Comment) []*Node {
	index := make(map[string]*Node, len(comments))
	for _, c := range comments {
		index[c.ID] = &Node{Comment: c, Replies: []*Node{}}
	}

	var roots []*Node
	for _, c := range comments {
		node := index[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := index[*c.ParentID]
		if !ok || inCycle(c.ID, index) {
			// Orphaned or cyclic parent link: promote to root. Callers
			// wanting a comment count must count the flat slice, not
			// the forest.
			roots = append(roots, node)
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	for _, node := range index {
		sortReplies(node.Replies)
	}
	return roots
}

// inCycle reports whether the ancestor chain starting at id leads back to
// id. Nodes hanging below a cycle are not themselves considered cyclic;
// promoting the cycle members alone is enough to break the loop.
func inCycle(id string, index map[string]*Node) bool {
	seen := map[string]bool{id: true}
	cur := index[id]
	for cur.ParentID != nil {
		next, ok := index[*cur.ParentID]
		if !ok {
			return false
		}
		if next.ID == id {
			return true
		}
		if seen[next.ID] {
			// A loop above us, but not through us.
			return false
		}
		seen[next.ID] = true
		cur = next
	}
	return false
}

func sortReplies(replies []*Node) {
	sort.Slice(replies, func(i, j int) bool {
		if replies[i].CreatedAt.Equal(replies[j].CreatedAt) {
			return replies[i].ID < replies[j].ID
		}
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
}

// ClampDepth returns a copy of the forest in which any node nested deeper
// than max levels is lifted into the replies of its ancestor at the max
// level, ordered by CreatedAt. Roots count as level 1. The input forest is
// left untouched.
func ClampDepth(forest []*Node, max int) []*Node {
	if max < 1 {
		max = 1
	}
	out := make([]*Node, 0, len(forest))
	for _, root := range forest {
		out = append(out, clampNode(root, 1, max))
	}
	return out
}

func clampNode(n *Node, depth, max int) *Node {
	clone := &Node{Comment: n.Comment, Replies: []*Node{}}
	if depth < max {
		for _, r := range n.Replies {
			clone.Replies = append(clone.Replies, clampNode(r, depth+1, max))
		}
		return clone
	}
	// At the cap: absorb the whole subtree as a flat reply list.
	var flat []*Node
	for _, r := range n.Replies {
		flat = append(flat, collect(r)...)
	}
	for _, f := range flat {
		clone.Replies = append(clone.Replies, &Node{Comment: f.Comment, Replies: []*Node{}})
	}
	sortReplies(clone.Replies)
	return clone
}

func collect(n *Node) []*Node {
	out := []*Node{n}
	for _, r := range n.Replies {
		out = append(out, collect(r)...)
	}
	return out
}

// Count returns the number of nodes reachable in the forest, roots
// included. For acyclic input it equals the flat input length.
func Count(forest []*Node) int {
	total := 0
	for _, n := range forest {
		total += 1 + Count(n.Replies)
	}
	return total
}
