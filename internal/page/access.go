package page

import (
	"wiki-backend/internal/user"
)

// CanView decides whether a principal may read a page. grantLevel is the
// principal's collaborator level on the page ("" when none) and must be
// looked up fresh per call; grants change between reads.
//
// Any grant confers view access, read or write.
func CanView(p *Page, principal *user.User, grantLevel string) bool {
	if p.IsPublic {
		return true
	}
	if principal == nil {
		return false
	}
	if principal.IsAdmin() {
		return true
	}
	if principal.ID == p.AuthorID {
		return true
	}
	return grantLevel != ""
}

// CanEdit decides whether a principal may mutate a page. Only a write
// grant confers edit access.
func CanEdit(p *Page, principal *user.User, grantLevel string) bool {
	if principal == nil {
		return false
	}
	if principal.IsAdmin() {
		return true
	}
	if principal.ID == p.AuthorID {
		return true
	}
	return grantLevel == AccessWrite
}
