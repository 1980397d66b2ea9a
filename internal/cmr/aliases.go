package cmr

import (
	"fmt"

	"gorm.io/gorm"

	apperrors "casei/internal/errors"
	"casei/internal/models"
	"casei/internal/registry"
)

// Aliases returns the names CMR may know an object by: its short name
// followed by the short names of its aliases.
func Aliases(db *gorm.DB, contentType, shortName string) ([]string, error) {
	if _, err := ParameterFor(contentType); err != nil {
		return nil, err
	}
	ct, ok := registry.Lookup(contentType)
	if !ok {
		return nil, apperrors.ErrUnknownModel
	}

	var ids []string
	if err := db.Model(ct.New()).Where("short_name = ?", shortName).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("finding %s %q: %w", contentType, shortName, err)
	}
	if len(ids) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrObjectMissing,
			fmt.Sprintf("no %s with short_name %q", contentType, shortName))
	}

	var aliases []string
	if err := db.Model(&models.Alias{}).
		Where("content_type = ? AND object_id = ?", contentType, ids[0]).
		Order("short_name").
		Pluck("short_name", &aliases).Error; err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}

	names := []string{shortName}
	for _, a := range aliases {
		if a != shortName {
			names = append(names, a)
		}
	}
	return names, nil
}
