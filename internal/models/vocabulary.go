package models

// LimitedInfo holds the columns shared by the small controlled-vocabulary tables.
type LimitedInfo struct {
	ShortName   string `gorm:"not null;uniqueIndex" json:"short_name" binding:"required,max=256"`
	LongName    string `json:"long_name" binding:"max=512"`
	NotesPublic string `json:"notes_public"`
}

type PlatformType struct {
	Base
	LimitedInfo
	ParentID *string `gorm:"type:uuid" json:"parent_id" binding:"omitempty,uuid"`
	GcmdUUID *string `gorm:"type:uuid" json:"gcmd_uuid" binding:"omitempty,uuid"`
	Example  string  `json:"example"`
}

type InstrumentType struct {
	Base
	LimitedInfo
	ParentID *string `gorm:"type:uuid" json:"parent_id" binding:"omitempty,uuid"`
	GcmdUUID *string `gorm:"type:uuid" json:"gcmd_uuid" binding:"omitempty,uuid"`
	Example  string  `json:"example"`
}

type HomeBase struct {
	Base
	LimitedInfo
	Location       string `json:"location" binding:"max=512"`
	AdditionalInfo string `json:"additional_info" binding:"max=2048"`
}

type FocusArea struct {
	Base
	LimitedInfo
	URL string `json:"url" binding:"omitempty,url"`
}

type Season struct {
	Base
	LimitedInfo
}

type Repository struct {
	Base
	LimitedInfo
	GcmdUUID *string `gorm:"type:uuid" json:"gcmd_uuid" binding:"omitempty,uuid"`
}

type MeasurementRegion struct {
	Base
	LimitedInfo
	Example string `json:"example"`
}

type GeographicalRegion struct {
	Base
	LimitedInfo
	Example string `json:"example"`
}

type GeophysicalConcept struct {
	Base
	LimitedInfo
	Example string `json:"example"`
}

type PartnerOrg struct {
	Base
	LimitedInfo
	Website string `json:"website" binding:"omitempty,url"`
}

type NasaMission struct {
	Base
	LimitedInfo
}

// Alias is an alternate short name for any CASEI object.
type Alias struct {
	Base
	ContentType string `gorm:"not null;index:idx_aliases_object" json:"content_type" binding:"required"`
	ObjectID    string `gorm:"type:uuid;not null;index:idx_aliases_object" json:"object_id" binding:"required,uuid"`
	ShortName   string `gorm:"not null;index" json:"short_name" binding:"required,max=512"`
	Source      string `json:"source" binding:"max=2048"`
}
