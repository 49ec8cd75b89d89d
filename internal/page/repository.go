package page

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollaboratorRow is a grant with the target user's identity joined in
type CollaboratorRow struct {
	ID          uint64
	PageID      uint64
	UserID      uint64
	Username    string
	Email       string
	AccessLevel string
	CreatedAt   time.Time
}

// VersionRow is a history entry with the editing user's name joined in
type VersionRow struct {
	ID        uint64
	PageID    uint64
	AuthorID  uint64
	Username  string
	Title     string
	Content   string
	Comment   *string
	CreatedAt time.Time
}

type PageRepository interface {
	Create(p *Page) error
	FindByID(id uint64) (*Page, error)
	FindBySlug(slug string) (*Page, error)
	ListAll() ([]Page, error)
	ListPublic() ([]Page, error)
	ListAccessible(userID uint64) ([]Page, error)
	ListChildren(parentIDs, exclude []uint64) ([]Page, error)
	ListByIDs(ids []uint64) ([]Page, error)
	SlugExists(slug string, excludeID uint64) (bool, error)
	UpdateWithVersion(p *Page, version *PageVersion) error
	Delete(pageID uint64) error

	GetAccessLevel(pageID, userID uint64) (string, error)
	ListCollaborators(pageID uint64) ([]CollaboratorRow, error)
	UpsertCollaborator(pageID, userID uint64, level string) (*PageCollaborator, error)

	ListVersions(pageID uint64) ([]VersionRow, error)
	FindVersion(pageID, versionID uint64) (*PageVersion, error)

	CreateLike(pageID, userID uint64) error
	DeleteLike(pageID, userID uint64) error
	LikeCount(pageID uint64) (int64, error)
	HasLiked(pageID, userID uint64) (bool, error)
	LikeCounts(pageIDs []uint64) (map[uint64]int64, error)
	LikedByUser(pageIDs []uint64, userID uint64) (map[uint64]bool, error)

	AuthorNames(userIDs []uint64) (map[uint64]string, error)
}

type PageRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new page repository
func NewRepository(db *gorm.DB) PageRepository {
	return &PageRepositoryImpl{db: db}
}

func (r *PageRepositoryImpl) Create(p *Page) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return r.db.Create(p).Error
}

func (r *PageRepositoryImpl) FindByID(id uint64) (*Page, error) {
	var p Page
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PageRepositoryImpl) FindBySlug(slug string) (*Page, error) {
	var p Page
	err := r.db.Where("slug = ?", slug).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PageRepositoryImpl) ListAll() ([]Page, error) {
	var pages []Page
	err := r.db.Order("id").Find(&pages).Error
	return pages, err
}

func (r *PageRepositoryImpl) ListPublic() ([]Page, error) {
	var pages []Page
	err := r.db.Where("is_public = ?", true).Order("id").Find(&pages).Error
	return pages, err
}

// ListAccessible returns the direct set for a non-admin user: public
// pages, own pages, and pages the user holds any grant on.
func (r *PageRepositoryImpl) ListAccessible(userID uint64) ([]Page, error) {
	grantedIDs := r.db.Model(&PageCollaborator{}).
		Select("page_id").
		Where("user_id = ?", userID)

	var pages []Page
	err := r.db.
		Where("is_public = ? OR author_id = ? OR id IN (?)", true, userID, grantedIDs).
		Order("id").
		Find(&pages).Error
	return pages, err
}

// ListChildren returns pages whose parent is in parentIDs but whose own
// id is not in exclude. One scan step of the descendant closure.
func (r *PageRepositoryImpl) ListChildren(parentIDs, exclude []uint64) ([]Page, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	var pages []Page
	err := r.db.
		Where("parent_id IN ? AND id NOT IN ?", parentIDs, exclude).
		Order("id").
		Find(&pages).Error
	return pages, err
}

func (r *PageRepositoryImpl) ListByIDs(ids []uint64) ([]Page, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var pages []Page
	err := r.db.Where("id IN ?", ids).Order("id").Find(&pages).Error
	return pages, err
}

func (r *PageRepositoryImpl) SlugExists(slug string, excludeID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&Page{}).
		Where("slug = ? AND id <> ?", slug, excludeID).
		Count(&count).Error
	return count > 0, err
}

// UpdateWithVersion appends the pre-mutation snapshot and applies the
// page mutation as one atomic unit. A reader never sees the version
// without the mutation or vice versa.
func (r *PageRepositoryImpl) UpdateWithVersion(p *Page, version *PageVersion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		version.CreatedAt = time.Now().UTC()
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		p.UpdatedAt = time.Now().UTC()
		return tx.Save(p).Error
	})
}

// Delete removes a page and cascades over its versions, grants and likes
func (r *PageRepositoryImpl) Delete(pageID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", pageID).Delete(&PageVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", pageID).Delete(&PageCollaborator{}).Error; err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", pageID).Delete(&PageLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Page{}, pageID).Error
	})
}

// GetAccessLevel returns the user's grant level on a page, "" when none
func (r *PageRepositoryImpl) GetAccessLevel(pageID, userID uint64) (string, error) {
	var level string
	err := r.db.Model(&PageCollaborator{}).
		Where("page_id = ? AND user_id = ?", pageID, userID).
		Select("access_level").
		Scan(&level).Error
	if err != nil {
		return "", err
	}
	return level, nil
}

func (r *PageRepositoryImpl) ListCollaborators(pageID uint64) ([]CollaboratorRow, error) {
	var rows []CollaboratorRow
	err := r.db.Model(&PageCollaborator{}).
		Select("page_collaborators.id, page_collaborators.page_id, page_collaborators.user_id, users.username, users.email, page_collaborators.access_level, page_collaborators.created_at").
		Joins("JOIN users ON users.id = page_collaborators.user_id").
		Where("page_collaborators.page_id = ?", pageID).
		Order("page_collaborators.id").
		Scan(&rows).Error
	return rows, err
}

// UpsertCollaborator inserts a grant or overwrites the level of an
// existing one. The unique (page, user) index makes this race-safe.
func (r *PageRepositoryImpl) UpsertCollaborator(pageID, userID uint64, level string) (*PageCollaborator, error) {
	now := time.Now().UTC()
	grant := PageCollaborator{
		PageID:      pageID,
		UserID:      userID,
		AccessLevel: level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_level", "updated_at"}),
	}).Create(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *PageRepositoryImpl) ListVersions(pageID uint64) ([]VersionRow, error) {
	var rows []VersionRow
	err := r.db.Model(&PageVersion{}).
		Select("page_versions.id, page_versions.page_id, page_versions.author_id, users.username, page_versions.title, page_versions.content, page_versions.comment, page_versions.created_at").
		Joins("JOIN users ON users.id = page_versions.author_id").
		Where("page_versions.page_id = ?", pageID).
		Order("page_versions.created_at DESC, page_versions.id DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *PageRepositoryImpl) FindVersion(pageID, versionID uint64) (*PageVersion, error) {
	var version PageVersion
	err := r.db.
		Where("id = ? AND page_id = ?", versionID, pageID).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *PageRepositoryImpl) CreateLike(pageID, userID uint64) error {
	return r.db.Create(&PageLike{
		PageID:    pageID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}).Error
}

func (r *PageRepositoryImpl) DeleteLike(pageID, userID uint64) error {
	result := r.db.
		Where("page_id = ? AND user_id = ?", pageID, userID).
		Delete(&PageLike{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PageRepositoryImpl) LikeCount(pageID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&PageLike{}).Where("page_id = ?", pageID).Count(&count).Error
	return count, err
}

func (r *PageRepositoryImpl) HasLiked(pageID, userID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&PageLike{}).
		Where("page_id = ? AND user_id = ?", pageID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *PageRepositoryImpl) LikeCounts(pageIDs []uint64) (map[uint64]int64, error) {
	counts := make(map[uint64]int64, len(pageIDs))
	if len(pageIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PageID uint64
		Count  int64
	}
	err := r.db.Model(&PageLike{}).
		Select("page_id, count(*) as count").
		Where("page_id IN ?", pageIDs).
		Group("page_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.PageID] = row.Count
	}
	return counts, nil
}

func (r *PageRepositoryImpl) LikedByUser(pageIDs []uint64, userID uint64) (map[uint64]bool, error) {
	liked := make(map[uint64]bool, len(pageIDs))
	if len(pageIDs) == 0 {
		return liked, nil
	}

	var ids []uint64
	err := r.db.Model(&PageLike{}).
		Where("page_id IN ? AND user_id = ?", pageIDs, userID).
		Pluck("page_id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

func (r *PageRepositoryImpl) AuthorNames(userIDs []uint64) (map[uint64]string, error) {
	names := make(map[uint64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var rows []struct {
		ID       uint64
		Username string
	}
	err := r.db.Table("users").
		Select("id, username").
		Where("id IN ?", userIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		names[row.ID] = row.Username
	}
	return names, nil
}
