package page

import (
	"time"
)

const (
	AccessRead  = "read"
	AccessWrite = "write"
)

// Page is a node in the wiki tree. The parent link is a weak reference:
// children are found by query, never held on the struct.
type Page struct {
	ID        uint64
	ParentID  *uint64
	AuthorID  uint64
	Title     string `gorm:"size:255"`
	Slug      string `gorm:"uniqueIndex;size:300"`
	Content   string
	IsPublic  bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PageCollaborator grants a user read or write access to a single page.
// At most one row per (page, user) pair; level changes are upserts.
type PageCollaborator struct {
	ID          uint64
	PageID      uint64 `gorm:"uniqueIndex:idx_page_collaborator"`
	UserID      uint64 `gorm:"uniqueIndex:idx_page_collaborator"`
	AccessLevel string `gorm:"size:10"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PageVersion is an immutable snapshot of a page taken before a mutation.
// Rows are appended, never updated or deleted (except via page cascade).
type PageVersion struct {
	ID        uint64
	PageID    uint64
	AuthorID  uint64
	Title     string `gorm:"size:255"`
	Content   string
	Comment   *string `gorm:"size:500"`
	CreatedAt time.Time
}

// PageLike is a per-user per-page toggle. The unique constraint is the
// arbiter under concurrent likes: the second insert fails.
type PageLike struct {
	ID        uint64
	PageID    uint64 `gorm:"uniqueIndex:idx_page_like"`
	UserID    uint64 `gorm:"uniqueIndex:idx_page_like"`
	CreatedAt time.Time
}
