package models

// Permission is a single capability, identified by app label and codename
// (for example data_models.change_campaign).
type Permission struct {
	Base
	AppLabel string `gorm:"not null;uniqueIndex:uq_permissions_app_codename" json:"app_label"`
	Codename string `gorm:"not null;uniqueIndex:uq_permissions_app_codename" json:"codename"`
	Name     string `json:"name"`
}

// FullCodename returns "<app_label>.<codename>".
func (p Permission) FullCodename() string {
	return p.AppLabel + "." + p.Codename
}

// Group is a named set of permissions. Users gain permissions through groups.
type Group struct {
	Base
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	Permissions []Permission `gorm:"many2many:group_permissions" json:"permissions,omitempty"`
}
