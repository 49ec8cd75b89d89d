package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v uint64) *uint64 { return &v }

func TestBuildTreeNestsChildrenUnderParents(t *testing.T) {
	pages := []Page{
		{ID: 1, Title: "Root"},
		{ID: 2, ParentID: ptr(1), Title: "Child"},
		{ID: 3, ParentID: ptr(2), Title: "Grandchild"},
		{ID: 4, Title: "Second root"},
	}
	authors := map[uint64]string{0: "alice"}

	forest := BuildTree(pages, authors, nil, nil)

	assert.Len(t, forest, 2)
	assert.Equal(t, uint64(1), forest[0].ID)
	assert.Len(t, forest[0].Children, 1)
	assert.Equal(t, uint64(2), forest[0].Children[0].ID)
	assert.Len(t, forest[0].Children[0].Children, 1)
	assert.Equal(t, uint64(3), forest[0].Children[0].Children[0].ID)
	assert.Equal(t, uint64(4), forest[1].ID)
	assert.Empty(t, forest[1].Children)
}

// A node whose parent was filtered out of the set becomes a root of its
// own subtree, not an error
func TestBuildTreeOrphanedSubtreeBecomesRoot(t *testing.T) {
	pages := []Page{
		{ID: 2, ParentID: ptr(1), Title: "Orphan"}, // parent 1 not in set
		{ID: 3, ParentID: ptr(2), Title: "Orphan child"},
	}

	forest := BuildTree(pages, nil, nil, nil)

	assert.Len(t, forest, 1)
	assert.Equal(t, uint64(2), forest[0].ID)
	assert.Len(t, forest[0].Children, 1)
	assert.Equal(t, uint64(3), forest[0].Children[0].ID)
}

func TestBuildTreeSiblingOrderIsInputOrder(t *testing.T) {
	pages := []Page{
		{ID: 1, Title: "Root"},
		{ID: 5, ParentID: ptr(1), Title: "First"},
		{ID: 3, ParentID: ptr(1), Title: "Second"},
		{ID: 9, ParentID: ptr(1), Title: "Third"},
	}

	forest := BuildTree(pages, nil, nil, nil)

	assert.Len(t, forest, 1)
	got := []uint64{}
	for _, child := range forest[0].Children {
		got = append(got, child.ID)
	}
	assert.Equal(t, []uint64{5, 3, 9}, got)
}

func TestBuildTreeLikeFields(t *testing.T) {
	pages := []Page{
		{ID: 1, AuthorID: 7, Title: "Root"},
	}
	authors := map[uint64]string{7: "alice"}
	counts := map[uint64]int64{1: 3}

	// guest view: user_liked omitted
	forest := BuildTree(pages, authors, counts, nil)
	assert.Equal(t, int64(3), forest[0].LikeCount)
	assert.Nil(t, forest[0].UserLiked)
	assert.Equal(t, "alice", forest[0].Author.Username)

	// authenticated view: user_liked present
	forest = BuildTree(pages, authors, counts, map[uint64]bool{1: true})
	if assert.NotNil(t, forest[0].UserLiked) {
		assert.True(t, *forest[0].UserLiked)
	}
}
