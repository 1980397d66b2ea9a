package models

// Platform is an aircraft, satellite, ship or ground station.
type Platform struct {
	Base
	ShortName         string  `gorm:"not null;uniqueIndex" json:"short_name" binding:"required,max=256"`
	LongName          string  `json:"long_name" binding:"max=512"`
	PlatformTypeID    *string `gorm:"type:uuid;index" json:"platform_type_id" binding:"omitempty,uuid"`
	Description       string  `json:"description" binding:"required"`
	OnlineInformation string  `json:"online_information" binding:"max=2048"`
	Stationary        bool    `json:"stationary"`
	NotesPublic       string  `json:"notes_public"`

	GcmdPlatforms []GcmdPlatform `gorm:"many2many:platform_gcmd_platforms" json:"gcmd_platforms,omitempty"`
}

// Instrument is a sensor carried on one or more platforms.
type Instrument struct {
	Base
	ShortName            string `gorm:"not null;uniqueIndex" json:"short_name" binding:"required,max=256"`
	LongName             string `json:"long_name" binding:"max=512"`
	Description          string `json:"description" binding:"required"`
	LeadInvestigator     string `json:"lead_investigator" binding:"max=256"`
	TechnicalContact     string `json:"technical_contact" binding:"max=256"`
	SpatialResolution    string `json:"spatial_resolution" binding:"max=256"`
	TemporalResolution   string `json:"temporal_resolution" binding:"max=256"`
	RadiometricFrequency string `json:"radiometric_frequency" binding:"max=256"`
	OnlineInformation    string `json:"online_information" binding:"max=2048"`
	NotesPublic          string `json:"notes_public"`

	InstrumentTypes    []InstrumentType    `gorm:"many2many:instrument_instrument_types" json:"instrument_types,omitempty"`
	MeasurementRegions []MeasurementRegion `gorm:"many2many:instrument_measurement_regions" json:"measurement_regions,omitempty"`
	Repositories       []Repository        `gorm:"many2many:instrument_repositories" json:"repositories,omitempty"`
	GcmdInstruments    []GcmdInstrument    `gorm:"many2many:instrument_gcmd_instruments" json:"gcmd_instruments,omitempty"`
	GcmdPhenomena      []GcmdPhenomenon    `gorm:"many2many:instrument_gcmd_phenomena" json:"gcmd_phenomena,omitempty"`
}
