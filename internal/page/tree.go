package page

import (
	"time"
)

type AuthorDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// TreeNode is one page in the assembled forest
type TreeNode struct {
	ID        uint64      `json:"id"`
	ParentID  *uint64     `json:"parent_id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	Content   string      `json:"content"`
	IsPublic  bool        `json:"is_public"`
	AuthorID  uint64      `json:"author_id"`
	Author    AuthorDTO   `json:"author"`
	LikeCount int64       `json:"like_count"`
	UserLiked *bool       `json:"user_liked,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Children  []*TreeNode `json:"children"`
}

// BuildTree assembles a flat, already access-filtered page list into a
// forest. Roots are pages without a parent or whose parent was filtered
// out; an orphaned subtree simply becomes a root of its own. Sibling
// order is the order of the input slice.
//
// liked may be nil (guest view); then user_liked is omitted from nodes.
func BuildTree(pages []Page, authors map[uint64]string, likeCounts map[uint64]int64, liked map[uint64]bool) []*TreeNode {
	inSet := make(map[uint64]bool, len(pages))
	for _, p := range pages {
		inSet[p.ID] = true
	}

	children := make(map[uint64][]Page)
	var roots []Page
	for _, p := range pages {
		if p.ParentID != nil && inSet[*p.ParentID] {
			children[*p.ParentID] = append(children[*p.ParentID], p)
		} else {
			roots = append(roots, p)
		}
	}

	var build func(p Page) *TreeNode
	build = func(p Page) *TreeNode {
		node := &TreeNode{
			ID:       p.ID,
			ParentID: p.ParentID,
			Title:    p.Title,
			Slug:     p.Slug,
			Content:  p.Content,
			IsPublic: p.IsPublic,
			AuthorID: p.AuthorID,
			Author: AuthorDTO{
				ID:       p.AuthorID,
				Username: authors[p.AuthorID],
			},
			LikeCount: likeCounts[p.ID],
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
			Children:  []*TreeNode{},
		}
		if liked != nil {
			userLiked := liked[p.ID]
			node.UserLiked = &userLiked
		}
		for _, child := range children[p.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	forest := make([]*TreeNode, 0, len(roots))
	for _, root := range roots {
		forest = append(forest, build(root))
	}
	return forest
}
