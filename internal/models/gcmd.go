package models

// GcmdKeyword is implemented by the GCMD controlled-vocabulary models.
type GcmdKeyword interface {
	Identifiable
	KeywordUUID() string
	DisplayName() string
}

type GcmdProject struct {
	Base
	ShortName string `json:"short_name" binding:"max=256"`
	LongName  string `json:"long_name" binding:"max=512"`
	Bucket    string `json:"bucket" binding:"required,max=256"`
	GcmdUUID  string `gorm:"type:uuid;not null;uniqueIndex" json:"gcmd_uuid" binding:"required,uuid"`
}

func (k *GcmdProject) KeywordUUID() string { return k.GcmdUUID }

func (k *GcmdProject) DisplayName() string {
	return firstNonEmpty(k.ShortName, k.LongName, k.Bucket)
}

type GcmdInstrument struct {
	Base
	ShortName          string `json:"short_name" binding:"max=256"`
	LongName           string `json:"long_name" binding:"max=512"`
	InstrumentCategory string `json:"instrument_category" binding:"max=256"`
	InstrumentClass    string `json:"instrument_class" binding:"max=256"`
	InstrumentType     string `json:"instrument_type" binding:"max=256"`
	InstrumentSubtype  string `json:"instrument_subtype" binding:"max=256"`
	GcmdUUID           string `gorm:"type:uuid;not null;uniqueIndex" json:"gcmd_uuid" binding:"required,uuid"`
}

func (k *GcmdInstrument) KeywordUUID() string { return k.GcmdUUID }

func (k *GcmdInstrument) DisplayName() string {
	return firstNonEmpty(k.ShortName, k.LongName, k.InstrumentSubtype, k.InstrumentType, k.InstrumentClass, k.InstrumentCategory)
}

type GcmdPlatform struct {
	Base
	ShortName   string `json:"short_name" binding:"max=256"`
	LongName    string `json:"long_name" binding:"max=512"`
	Category    string `json:"category" binding:"max=256"`
	SeriesEntry string `json:"series_entry" binding:"max=256"`
	Description string `json:"description"`
	Basis       string `json:"basis" binding:"max=256"`
	Subcategory string `json:"subcategory" binding:"max=256"`
	GcmdUUID    string `gorm:"type:uuid;not null;uniqueIndex" json:"gcmd_uuid" binding:"required,uuid"`
}

func (k *GcmdPlatform) KeywordUUID() string { return k.GcmdUUID }

func (k *GcmdPlatform) DisplayName() string {
	return firstNonEmpty(k.ShortName, k.LongName, k.Subcategory, k.Category, k.Basis)
}

type GcmdPhenomenon struct {
	Base
	Category  string `json:"category" binding:"required,max=256"`
	Topic     string `json:"topic" binding:"max=256"`
	Term      string `json:"term" binding:"max=256"`
	Variable1 string `gorm:"column:variable_1" json:"variable_1" binding:"max=256"`
	Variable2 string `gorm:"column:variable_2" json:"variable_2" binding:"max=256"`
	Variable3 string `gorm:"column:variable_3" json:"variable_3" binding:"max=256"`
	GcmdUUID  string `gorm:"type:uuid;not null;uniqueIndex" json:"gcmd_uuid" binding:"required,uuid"`
}

// TableName avoids relying on inflection for "phenomenon".
func (GcmdPhenomenon) TableName() string { return "gcmd_phenomena" }

func (k *GcmdPhenomenon) KeywordUUID() string { return k.GcmdUUID }

// DisplayName returns the most specific populated level of the keyword path.
func (k *GcmdPhenomenon) DisplayName() string {
	return firstNonEmpty(k.Variable3, k.Variable2, k.Variable1, k.Term, k.Topic, k.Category)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
