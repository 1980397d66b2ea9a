package services

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"casei/internal/cache"
	apperrors "casei/internal/errors"
	"casei/internal/logger"
	"casei/internal/models"
	"casei/internal/permissions"
)

// permissionService seeds groups from the declarative document and answers
// permission checks.
type permissionService struct {
	db    *gorm.DB
	cache cache.Service
	doc   *permissions.Document
}

// NewPermissionService creates a new PermissionServicer backed by the embedded
// group document. c may be a cache with a nil client.
func NewPermissionService(db *gorm.DB, c cache.Service) PermissionServicer {
	return &permissionService{db: db, cache: c, doc: permissions.Default()}
}

// Seed creates every permission and group in the document and places each
// user in the group of their role. Running it again is harmless.
func (s *permissionService) Seed(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byCodename := map[string]models.Permission{}
		for _, p := range s.doc.Permissions() {
			row := models.Permission{}
			if err := tx.Where(models.Permission{AppLabel: p.AppLabel, Codename: p.Codename}).
				Attrs(models.Permission{Name: p.Name}).
				FirstOrCreate(&row).Error; err != nil {
				return err
			}
			byCodename[row.FullCodename()] = row
		}

		for _, def := range s.doc.Groups {
			group := models.Group{}
			if err := tx.Where(models.Group{Name: def.Name}).FirstOrCreate(&group).Error; err != nil {
				return err
			}
			var granted []models.Permission
			for _, codename := range s.doc.GroupPermissions(def.Name) {
				granted = append(granted, byCodename[codename])
			}
			if err := tx.Model(&group).Association("Permissions").Replace(granted); err != nil {
				return err
			}
		}

		var users []models.User
		if err := tx.Find(&users).Error; err != nil {
			return err
		}
		for i := range users {
			if err := s.syncGroups(tx, &users[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.cache.InvalidateAllPermissions(ctx); err != nil {
		logger.Named("permissions").Warnw("failed to invalidate permission cache", "error", err)
	}
	logger.Named("permissions").Infow("permission groups seeded", "groups", len(s.doc.Groups))
	return nil
}

// SyncUserGroups replaces the user's group membership with the group of
// their current role.
func (s *permissionService) SyncUserGroups(ctx context.Context, user *models.User) error {
	if err := s.syncGroups(s.db.WithContext(ctx), user); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.cache.InvalidatePermissions(ctx, user.ID); err != nil {
		logger.Named("permissions").Warnw("failed to invalidate permission cache", "error", err, "user_id", user.ID)
	}
	return nil
}

func (s *permissionService) syncGroups(tx *gorm.DB, user *models.User) error {
	role := user.Role
	if user.IsSuperuser {
		role = models.RoleAdmin
	}
	name := s.doc.GroupForRole(role)
	if name == "" {
		return tx.Model(user).Association("Groups").Clear()
	}
	var group models.Group
	if err := tx.Where("name = ?", name).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Groups are created by Seed; nothing to join yet.
			return nil
		}
		return err
	}
	return tx.Model(user).Association("Groups").Replace(&group)
}

// UserPermissions returns the sorted full codenames the user holds.
// Superusers hold every permission.
func (s *permissionService) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	if cached, err := s.cache.GetPermissions(ctx, userID); err == nil {
		return cached, nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []models.Permission
	q := s.db.WithContext(ctx).Model(&models.Permission{})
	if !user.IsSuperuser {
		q = q.Joins("JOIN group_permissions ON group_permissions.permission_id = permissions.id").
			Joins("JOIN user_groups ON user_groups.group_id = group_permissions.group_id").
			Where("user_groups.user_id = ?", userID).
			Distinct("permissions.id", "permissions.app_label", "permissions.codename")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	codenames := make([]string, len(rows))
	for i, p := range rows {
		codenames[i] = p.FullCodename()
	}
	sort.Strings(codenames)

	if err := s.cache.SetPermissions(ctx, userID, codenames); err != nil {
		logger.Named("permissions").Warnw("failed to cache permissions", "error", err, "user_id", userID)
	}
	return codenames, nil
}

// HasPermission reports whether the user holds the given full codename.
func (s *permissionService) HasPermission(ctx context.Context, userID, codename string) (bool, error) {
	codenames, err := s.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(codenames, codename)
	return i < len(codenames) && codenames[i] == codename, nil
}
