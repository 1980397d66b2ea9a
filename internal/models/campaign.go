package models

// Campaign is an airborne science field campaign.
type Campaign struct {
	Base
	ShortName               string `gorm:"not null;uniqueIndex" json:"short_name" binding:"required,max=256"`
	LongName                string `gorm:"not null" json:"long_name" binding:"required,max=512"`
	Description             string `json:"description"`
	FocusPhenomena          string `json:"focus_phenomena" binding:"max=1024"`
	RegionDescription       string `json:"region_description"`
	StartDate               Date   `gorm:"not null" json:"start_date"`
	EndDate                 *Date  `json:"end_date"`
	Ongoing                 bool   `json:"ongoing"`
	NasaLed                 bool   `json:"nasa_led"`
	FundingAgency           string `json:"funding_agency" binding:"max=256"`
	LeadInvestigator        string `json:"lead_investigator" binding:"max=256"`
	NumberCollectionPeriods *int   `json:"number_collection_periods" binding:"omitempty,gte=0"`
	DOI                     string `gorm:"column:doi" json:"doi" binding:"max=128"`
	NotesPublic             string `json:"notes_public"`
	NotesInternal           string `json:"notes_internal"`

	FocusAreas          []FocusArea          `gorm:"many2many:campaign_focus_areas" json:"focus_areas,omitempty"`
	Seasons             []Season             `gorm:"many2many:campaign_seasons" json:"seasons,omitempty"`
	Repositories        []Repository         `gorm:"many2many:campaign_repositories" json:"repositories,omitempty"`
	PartnerOrgs         []PartnerOrg         `gorm:"many2many:campaign_partner_orgs" json:"partner_orgs,omitempty"`
	NasaMissions        []NasaMission        `gorm:"many2many:campaign_nasa_missions" json:"nasa_missions,omitempty"`
	GeophysicalConcepts []GeophysicalConcept `gorm:"many2many:campaign_geophysical_concepts" json:"geophysical_concepts,omitempty"`
	GcmdProjects        []GcmdProject        `gorm:"many2many:campaign_gcmd_projects" json:"gcmd_projects,omitempty"`
	GcmdPhenomena       []GcmdPhenomenon     `gorm:"many2many:campaign_gcmd_phenomena" json:"gcmd_phenomena,omitempty"`
}

// Deployment is a time-bounded phase of a campaign.
type Deployment struct {
	Base
	CampaignID          string               `gorm:"type:uuid;not null;index" json:"campaign_id" binding:"required,uuid"`
	ShortName           string               `gorm:"not null;uniqueIndex" json:"short_name" binding:"required,max=256"`
	LongName            string               `json:"long_name" binding:"max=512"`
	StartDate           Date                 `gorm:"not null" json:"start_date"`
	EndDate             Date                 `gorm:"not null" json:"end_date"`
	NotesPublic         string               `json:"notes_public"`
	GeographicalRegions []GeographicalRegion `gorm:"many2many:deployment_geographical_regions" json:"geographical_regions,omitempty"`
}

// IOP is an intensive observation period inside a deployment.
type IOP struct {
	Base
	DeploymentID string `gorm:"type:uuid;not null;index" json:"deployment_id" binding:"required,uuid"`
	ShortName    string `gorm:"not null" json:"short_name" binding:"required,max=256"`
	StartDate    Date   `gorm:"not null" json:"start_date"`
	EndDate      Date   `gorm:"not null" json:"end_date"`
	Description  string `json:"description" binding:"required"`
	ReportedBy   string `json:"reported_by"`
}

// TableName keeps the acronym readable in SQL.
func (IOP) TableName() string { return "iops" }

// SignificantEvent is a notable event during a deployment.
type SignificantEvent struct {
	Base
	DeploymentID string  `gorm:"type:uuid;not null;index" json:"deployment_id" binding:"required,uuid"`
	IOPID        *string `gorm:"column:iop_id;type:uuid" json:"iop_id" binding:"omitempty,uuid"`
	ShortName    string  `gorm:"not null" json:"short_name" binding:"required,max=256"`
	StartDate    Date    `gorm:"not null" json:"start_date"`
	EndDate      Date    `gorm:"not null" json:"end_date"`
	Description  string  `json:"description" binding:"required"`
	ReportedBy   string  `json:"reported_by"`
}

// CollectionPeriod ties a platform and its instruments to a deployment.
type CollectionPeriod struct {
	Base
	DeploymentID  string       `gorm:"type:uuid;not null;index" json:"deployment_id" binding:"required,uuid"`
	PlatformID    string       `gorm:"type:uuid;not null;index" json:"platform_id" binding:"required,uuid"`
	HomeBaseID    *string      `gorm:"type:uuid" json:"home_base_id" binding:"omitempty,uuid"`
	AutoGenerated bool         `json:"auto_generated"`
	NumberFlights *int         `json:"number_flights" binding:"omitempty,gte=0"`
	NotesPublic   string       `json:"notes_public"`
	Instruments   []Instrument `gorm:"many2many:collection_period_instruments" json:"instruments,omitempty"`
}
