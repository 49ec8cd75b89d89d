package page

import (
	"context"
	defError "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"wiki-backend/internal/errors"
	"wiki-backend/internal/user"
	"wiki-backend/internal/worker"
	"wiki-backend/redis"

	"gorm.io/gorm"
)

const (
	searchResultLimit    = 50
	contentPreviewLength = 200
	defaultPopularLimit  = 5

	// version key bumped on every mutation so cached trees go stale
	treeVersionKey = "pages:tree:version"

	restoreComment = "Before restoring version"
)

type Service interface {
	GetPageTree(ctx context.Context, principal *user.User) ([]*TreeNode, error)
	GetPage(ctx context.Context, idOrSlug string, principal *user.User) (*PageDTO, error)
	CreatePage(ctx context.Context, principal *user.User, input CreatePageInput) (*PageDTO, error)
	UpdatePage(ctx context.Context, idOrSlug string, principal *user.User, input UpdatePageInput) (*PageDTO, error)
	DeletePage(ctx context.Context, idOrSlug string, principal *user.User) error
	GetHistory(ctx context.Context, idOrSlug string, principal *user.User) ([]VersionDTO, error)
	RestoreVersion(ctx context.Context, idOrSlug string, versionID uint64, principal *user.User) (*PageDTO, error)
	ListCollaborators(ctx context.Context, idOrSlug string, principal *user.User) ([]CollaboratorDTO, error)
	UpsertCollaborator(ctx context.Context, idOrSlug string, principal *user.User, targetUserID uint64, level string) (*CollaboratorDTO, error)
	LikePage(ctx context.Context, idOrSlug string, principal *user.User) error
	UnlikePage(ctx context.Context, idOrSlug string, principal *user.User) error
	GetLikeInfo(ctx context.Context, idOrSlug string, principal *user.User) (*LikeInfo, error)
	Search(ctx context.Context, query string, principal *user.User) ([]SearchResult, error)
	GetPopularPages(ctx context.Context, limit int, principal *user.User) ([]PopularPage, error)
}

type UserProvider interface {
	GetUserByID(id uint64) (*user.User, error)
}

type DefaultService struct {
	repository   PageRepository
	userProvider UserProvider
	cache        *redis.Cache
	pool         *worker.WorkerPool
}

func NewService(
	repository PageRepository,
	userProvider UserProvider,
	cache *redis.Cache,
	pool *worker.WorkerPool,
) Service {
	return &DefaultService{
		repository:   repository,
		userProvider: userProvider,
		cache:        cache,
		pool:         pool,
	}
}

type CreatePageInput struct {
	Title    string
	Content  string
	ParentID *uint64
	IsPublic bool
}

// UpdatePageInput carries the tri-state public flag: nil preserves the
// current value, only an explicit true/false changes it.
type UpdatePageInput struct {
	Title    string
	Content  string
	IsPublic *bool
	Comment  *string
}

type PageDTO struct {
	ID        uint64    `json:"id"`
	ParentID  *uint64   `json:"parent_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"`
	IsPublic  bool      `json:"is_public"`
	AuthorID  uint64    `json:"author_id"`
	Author    AuthorDTO `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LikeCount *int64    `json:"like_count,omitempty"`
	UserLiked *bool     `json:"user_liked,omitempty"`
}

type VersionDTO struct {
	ID        uint64    `json:"id"`
	PageID    uint64    `json:"page_id"`
	Author    AuthorDTO `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Comment   *string   `json:"version_comment"`
	CreatedAt time.Time `json:"created_at"`
}

type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type CollaboratorDTO struct {
	ID          uint64    `json:"id"`
	User        UserDTO   `json:"user"`
	AccessLevel string    `json:"access_level"`
	CreatedAt   time.Time `json:"created_at"`
}

type LikeInfo struct {
	PageID    uint64 `json:"page_id"`
	LikeCount int64  `json:"like_count"`
	UserLiked bool   `json:"user_liked"`
}

type Highlight struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type SearchResult struct {
	Page      PageDTO   `json:"page"`
	Highlight Highlight `json:"highlight"`
}

type PopularPage struct {
	PageDTO
	LikeCount int64 `json:"like_count"`
}

// findPage resolves a path parameter to a page, by id when numeric and
// by slug otherwise.
func (s *DefaultService) findPage(idOrSlug string) (*Page, error) {
	var p *Page
	var err error

	id, parseErr := parseID(idOrSlug)
	if parseErr == nil {
		p, err = s.repository.FindByID(id)
	} else {
		p, err = s.repository.FindBySlug(idOrSlug)
	}

	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Page not found", err)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// grantLevel looks up the principal's collaborator level fresh; it is
// never cached because grants change between reads.
func (s *DefaultService) grantLevel(p *Page, principal *user.User) (string, error) {
	if principal == nil {
		return "", nil
	}
	return s.repository.GetAccessLevel(p.ID, principal.ID)
}

// accessiblePages computes the closure set for a principal: the direct
// set (guest: public pages; admin: everything; user: public, owned and
// granted pages), then every descendant of anything in the set,
// regardless of the descendant's own flags. Each scan only ever adds
// ids, so the loop terminates even on malformed parent links.
func (s *DefaultService) accessiblePages(principal *user.User) ([]Page, error) {
	var direct []Page
	var err error

	switch {
	case principal == nil:
		direct, err = s.repository.ListPublic()
	case principal.IsAdmin():
		return s.repository.ListAll()
	default:
		direct, err = s.repository.ListAccessible(principal.ID)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(direct))
	for _, p := range direct {
		ids = append(ids, p.ID)
	}

	for {
		children, err := s.repository.ListChildren(ids, ids)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			break
		}
		for _, child := range children {
			ids = append(ids, child.ID)
		}
	}

	return s.repository.ListByIDs(ids)
}

func (s *DefaultService) GetPageTree(ctx context.Context, principal *user.User) ([]*TreeNode, error) {
	var principalID uint64
	if principal != nil {
		principalID = principal.ID
	}

	v := s.cache.GetVersion(ctx, treeVersionKey)
	cacheKey := fmt.Sprintf("pages:tree:v:%d:u:%d", v, principalID)

	var forest []*TreeNode
	if found, _ := s.cache.Get(ctx, cacheKey, &forest); found {
		return forest, nil
	}

	pages, err := s.accessiblePages(principal)
	if err != nil {
		return nil, err
	}

	pageIDs := make([]uint64, 0, len(pages))
	authorIDs := make([]uint64, 0, len(pages))
	for _, p := range pages {
		pageIDs = append(pageIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
	}

	authors, err := s.repository.AuthorNames(authorIDs)
	if err != nil {
		return nil, err
	}
	likeCounts, err := s.repository.LikeCounts(pageIDs)
	if err != nil {
		return nil, err
	}

	var liked map[uint64]bool
	if principal != nil {
		liked, err = s.repository.LikedByUser(pageIDs, principal.ID)
		if err != nil {
			return nil, err
		}
	}

	forest = BuildTree(pages, authors, likeCounts, liked)

	s.enqueue(func(ctx context.Context) error {
		return s.cache.Set(ctx, cacheKey, forest, 24*time.Hour)
	})

	return forest, nil
}

// GetPage checks only the direct predicate (public, owner, admin,
// grant). A private child of an accessible parent shows up in the tree
// but is Forbidden here; the listing path alone applies descendant
// inheritance.
func (s *DefaultService) GetPage(ctx context.Context, idOrSlug string, principal *user.User) (*PageDTO, error) {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	level, err := s.grantLevel(p, principal)
	if err != nil {
		return nil, err
	}
	if !CanView(p, principal, level) {
		return nil, errors.Forbidden("Not authorized", nil)
	}

	dto, err := s.toPageDTO(p)
	if err != nil {
		return nil, err
	}

	likeCount, err := s.repository.LikeCount(p.ID)
	if err != nil {
		return nil, err
	}
	dto.LikeCount = &likeCount

	if principal != nil {
		userLiked, err := s.repository.HasLiked(p.ID, principal.ID)
		if err != nil {
			return nil, err
		}
		dto.UserLiked = &userLiked
	}

	return dto, nil
}

func (s *DefaultService) CreatePage(ctx context.Context, principal *user.User, input CreatePageInput) (*PageDTO, error) {
	if input.ParentID != nil {
		parent, err := s.repository.FindByID(*input.ParentID)
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Parent page not found", err)
		}
		if err != nil {
			return nil, err
		}

		level, err := s.grantLevel(parent, principal)
		if err != nil {
			return nil, err
		}
		if !CanEdit(parent, principal, level) {
			return nil, errors.Forbidden("No permission to create child pages for this page", nil)
		}
	}

	slug, err := s.uniqueSlug(Slugify(input.Title), 0)
	if err != nil {
		return nil, err
	}

	p := &Page{
		ParentID: input.ParentID,
		AuthorID: principal.ID,
		Title:    input.Title,
		Slug:     slug,
		Content:  input.Content,
		IsPublic: input.IsPublic,
	}
	if err := s.repository.Create(p); err != nil {
		return nil, err
	}

	s.bumpTreeVersion()
	return s.toPageDTO(p)
}

func (s *DefaultService) UpdatePage(ctx context.Context, idOrSlug string, principal *user.User, input UpdatePageInput) (*PageDTO, error) {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	level, err := s.grantLevel(p, principal)
	if err != nil {
		return nil, err
	}
	if !CanEdit(p, principal, level) {
		return nil, errors.Forbidden("Not authorized to edit this page", nil)
	}

	// Snapshot the state being moved away from, attributed to the editor
	version := &PageVersion{
		PageID:   p.ID,
		AuthorID: principal.ID,
		Title:    p.Title,
		Content:  p.Content,
		Comment:  input.Comment,
	}

	p.Title = input.Title
	p.Content = input.Content
	if input.IsPublic != nil {
		p.IsPublic = *input.IsPublic
	}

	if base := Slugify(input.Title); base != p.Slug {
		slug, err := s.uniqueSlug(base, p.ID)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
	}

	if err := s.repository.UpdateWithVersion(p, version); err != nil {
		return nil, err
	}

	s.bumpTreeVersion()
	return s.toPageDTO(p)
}

func (s *DefaultService) DeletePage(ctx context.Context, idOrSlug string, principal *user.User) error {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return err
	}

	// Delete is stricter than edit: grants never confer it
	if p.AuthorID != principal.ID && !principal.IsAdmin() {
		return errors.Forbidden("Not authorized to delete this page", nil)
	}

	if err := s.repository.Delete(p.ID); err != nil {
		return err
	}

	s.bumpTreeVersion()
	return nil
}

func (s *DefaultService) GetHistory(ctx context.Context, idOrSlug string, principal *user.User) ([]VersionDTO, error) {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	level, err := s.grantLevel(p, principal)
	if err != nil {
		return nil, err
	}
	if !CanView(p, principal, level) {
		return nil, errors.Forbidden("Not authorized", nil)
	}

	rows, err := s.repository.ListVersions(p.ID)
	if err != nil {
		return nil, err
	}

	versions := make([]VersionDTO, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, VersionDTO{
			ID:     row.ID,
			PageID: row.PageID,
			Author: AuthorDTO{
				ID:       row.AuthorID,
				Username: row.Username,
			},
			Title:     row.Title,
			Content:   row.Content,
			Comment:   row.Comment,
			CreatedAt: row.CreatedAt,
		})
	}
	return versions, nil
}

func (s *DefaultService) RestoreVersion(ctx context.Context, idOrSlug string, versionID uint64, principal *user.User) (*PageDTO, error) {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	level, err := s.grantLevel(p, principal)
	if err != nil {
		return nil, err
	}
	if !CanEdit(p, principal, level) {
		return nil, errors.Forbidden("Not authorized to edit this page", nil)
	}

	version, err := s.repository.FindVersion(p.ID, versionID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Version not found", err)
	}
	if err != nil {
		return nil, err
	}

	// Checkpoint the current state before overwriting it
	comment := restoreComment
	checkpoint := &PageVersion{
		PageID:   p.ID,
		AuthorID: principal.ID,
		Title:    p.Title,
		Content:  p.Content,
		Comment:  &comment,
	}

	// Restore touches title and content only, never slug or public flag
	p.Title = version.Title
	p.Content = version.Content

	if err := s.repository.UpdateWithVersion(p, checkpoint); err != nil {
		return nil, err
	}

	s.bumpTreeVersion()
	return s.toPageDTO(p)
}

func (s *DefaultService) ListCollaborators(ctx context.Context, idOrSlug string, principal *user.User) ([]CollaboratorDTO, error) {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	level, err := s.grantLevel(p, principal)
	if err != nil {
		return nil, err
	}
	if !CanEdit(p, principal, level) {
		return nil, errors.Forbidden("Not authorized", nil)
	}

	rows, err := s.repository.ListCollaborators(p.ID)
	if err != nil {
		return nil, err
	}

	result := make([]CollaboratorDTO, 0, len(rows))
	for _, row := range rows {
		result = append(result, CollaboratorDTO{
			ID: row.ID,
			User: UserDTO{
				ID:       row.UserID,
				Username: row.Username,
				Email:    row.Email,
			},
			AccessLevel: row.AccessLevel,
			CreatedAt:   row.CreatedAt,
		})
	}
	return result, nil
}

func (s *DefaultService) UpsertCollaborator(ctx context.Context, idOrSlug string, principal *user.User, targetUserID uint64, accessLevel string) (*CollaboratorDTO, error) {
	if accessLevel != AccessRead && accessLevel != AccessWrite {
		return nil, errors.UnprocessableEntity("access_level must be 'read' or 'write'", nil)
	}

	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	level, err := s.grantLevel(p, principal)
	if err != nil {
		return nil, err
	}
	if !CanEdit(p, principal, level) {
		return nil, errors.Forbidden("Not authorized", nil)
	}

	target, err := s.userProvider.GetUserByID(targetUserID)
	if err != nil {
		return nil, errors.NotFound("User not found", err)
	}

	grant, err := s.repository.UpsertCollaborator(p.ID, targetUserID, accessLevel)
	if err != nil {
		return nil, err
	}

	// A new grant widens the target's closure
	s.bumpTreeVersion()

	return &CollaboratorDTO{
		ID: grant.ID,
		User: UserDTO{
			ID:       target.ID,
			Username: target.Username,
			Email:    target.Email,
		},
		AccessLevel: grant.AccessLevel,
		CreatedAt:   grant.CreatedAt,
	}, nil
}

func (s *DefaultService) LikePage(ctx context.Context, idOrSlug string, principal *user.User) error {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return err
	}

	if err := s.repository.CreateLike(p.ID, principal.ID); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Conflict("Page already liked", err)
		}
		return err
	}

	s.bumpTreeVersion()
	return nil
}

func (s *DefaultService) UnlikePage(ctx context.Context, idOrSlug string, principal *user.User) error {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteLike(p.ID, principal.ID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Like not found", err)
		}
		return err
	}

	s.bumpTreeVersion()
	return nil
}

func (s *DefaultService) GetLikeInfo(ctx context.Context, idOrSlug string, principal *user.User) (*LikeInfo, error) {
	p, err := s.findPage(idOrSlug)
	if err != nil {
		return nil, err
	}

	count, err := s.repository.LikeCount(p.ID)
	if err != nil {
		return nil, err
	}

	liked, err := s.repository.HasLiked(p.ID, principal.ID)
	if err != nil {
		return nil, err
	}

	return &LikeInfo{
		PageID:    p.ID,
		LikeCount: count,
		UserLiked: liked,
	}, nil
}

// Search filters the principal's closure set by a case-insensitive
// substring over title and content, capped at 50 results in storage
// order. The first title match is wrapped in <mark> tags; content is
// truncated to a preview, not highlighted.
func (s *DefaultService) Search(ctx context.Context, query string, principal *user.User) ([]SearchResult, error) {
	pages, err := s.accessiblePages(principal)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	authors, err := s.repository.AuthorNames(authorIDsOf(pages))
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0)
	for _, p := range pages {
		if len(results) >= searchResultLimit {
			break
		}

		titleHighlight, titleMatched := highlightTitle(p.Title, query)
		if !titleMatched && !strings.Contains(strings.ToLower(p.Content), lowered) {
			continue
		}

		results = append(results, SearchResult{
			Page: PageDTO{
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
				CreatedAt: p.CreatedAt,
				UpdatedAt: p.UpdatedAt,
			},
			Highlight: Highlight{
				Title:   titleHighlight,
				Content: contentPreview(p.Content),
			},
		})
	}

	return results, nil
}

// GetPopularPages ranks the closure set by like count descending,
// newest first among ties.
func (s *DefaultService) GetPopularPages(ctx context.Context, limit int, principal *user.User) ([]PopularPage, error) {
	if limit < 1 {
		limit = defaultPopularLimit
	}

	pages, err := s.accessiblePages(principal)
	if err != nil {
		return nil, err
	}

	pageIDs := make([]uint64, 0, len(pages))
	for _, p := range pages {
		pageIDs = append(pageIDs, p.ID)
	}
	counts, err := s.repository.LikeCounts(pageIDs)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pages, func(i, j int) bool {
		ci, cj := counts[pages[i].ID], counts[pages[j].ID]
		if ci != cj {
			return ci > cj
		}
		return pages[i].CreatedAt.After(pages[j].CreatedAt)
	})

	if len(pages) > limit {
		pages = pages[:limit]
	}

	authors, err := s.repository.AuthorNames(authorIDsOf(pages))
	if err != nil {
		return nil, err
	}

	result := make([]PopularPage, 0, len(pages))
	for _, p := range pages {
		result = append(result, PopularPage{
			PageDTO: PageDTO{
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
				CreatedAt: p.CreatedAt,
				UpdatedAt: p.UpdatedAt,
			},
			LikeCount: counts[p.ID],
		})
	}
	return result, nil
}

// uniqueSlug resolves collisions with numeric suffixes: base, base-1,
// base-2, ... excludeID skips the page's own row on rename.
func (s *DefaultService) uniqueSlug(base string, excludeID uint64) (string, error) {
	slug := base
	for counter := 1; ; counter++ {
		exists, err := s.repository.SlugExists(slug, excludeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *DefaultService) toPageDTO(p *Page) (*PageDTO, error) {
	authors, err := s.repository.AuthorNames([]uint64{p.AuthorID})
	if err != nil {
		return nil, err
	}

	return &PageDTO{
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
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// bumpTreeVersion invalidates cached trees. The bump runs on the
// request path: pushing it through the pool could drop it under load,
// and a lost bump serves stale visibility for the cache TTL. Only the
// rebuildable cache writes go through the pool.
func (s *DefaultService) bumpTreeVersion() {
	s.cache.IncrementVersion(context.Background(), treeVersionKey)
}

func (s *DefaultService) enqueue(task worker.Task) {
	if s.pool != nil {
		s.pool.Submit(task)
		return
	}
	// no pool wired, run inline; cache maintenance never fails a request
	_ = task(context.Background())
}

func parseID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// highlightTitle wraps the first case-insensitive match of query in
// <mark> tags. Matching and slicing happen over runes, never bytes, so
// multi-byte titles cannot be cut mid-character.
func highlightTitle(title, query string) (string, bool) {
	titleRunes := []rune(title)
	needle := lowerRunes(query)
	idx := runeIndex(lowerRunes(title), needle)
	if idx < 0 {
		return title, false
	}

	end := idx + len(needle)
	return string(titleRunes[:idx]) +
		"<mark>" + string(titleRunes[idx:end]) + "</mark>" +
		string(titleRunes[end:]), true
}

// lowerRunes folds one rune at a time, keeping indexes aligned with the
// original string; strings.ToLower may change the rune count
func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		matched := true
		for j, r := range needle {
			if haystack[i+j] != r {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

func contentPreview(content string) string {
	runes := []rune(content)
	if len(runes) <= contentPreviewLength {
		return content
	}
	return string(runes[:contentPreviewLength]) + "..."
}

func authorIDsOf(pages []Page) []uint64 {
	ids := make([]uint64, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.AuthorID)
	}
	return ids
}
