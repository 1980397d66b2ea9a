// Package registry maps content type names to the gorm models behind them.
// A content type name is used as the URL slug (/api/<name>), as the
// content_type column of changes and aliases, and as the target of
// recommendations.
package registry

import (
	"sort"

	"casei/internal/models"
)

// Relation describes a many-to-many association that a change payload may
// set by listing the ids of the related rows.
type Relation struct {
	// Key is the JSON key used in change payloads and responses.
	Key string
	// Field is the gorm association name on the owning model.
	Field string
	// Target is the content type name of the related model.
	Target string
}

// ContentType describes one editable model.
type ContentType struct {
	Name      string
	Relations []Relation

	newModel func() any
	newSlice func() any
}

// New returns a pointer to a zero value of the model.
func (ct *ContentType) New() any { return ct.newModel() }

// NewSlice returns a pointer to an empty slice of the model.
func (ct *ContentType) NewSlice() any { return ct.newSlice() }

// Relation returns the relation with the given JSON key.
func (ct *ContentType) Relation(key string) (Relation, bool) {
	for _, r := range ct.Relations {
		if r.Key == key {
			return r, true
		}
	}
	return Relation{}, false
}

// IsGcmd reports whether the content type is a GCMD keyword.
func (ct *ContentType) IsGcmd() bool {
	_, ok := ct.New().(models.GcmdKeyword)
	return ok
}

var contentTypes = map[string]*ContentType{}

func register[T any](name string, relations ...Relation) {
	contentTypes[name] = &ContentType{
		Name:      name,
		Relations: relations,
		newModel:  func() any { return new(T) },
		newSlice:  func() any { return &[]T{} },
	}
}

// Content type names.
const (
	Campaign           = "campaign"
	Deployment         = "deployment"
	IOP                = "iop"
	SignificantEvent   = "significant_event"
	CollectionPeriod   = "collection_period"
	Platform           = "platform"
	Instrument         = "instrument"
	PlatformType       = "platform_type"
	InstrumentType     = "instrument_type"
	HomeBase           = "home_base"
	FocusArea          = "focus_area"
	Season             = "season"
	Repository         = "repository"
	MeasurementRegion  = "measurement_region"
	GeographicalRegion = "geographical_region"
	GeophysicalConcept = "geophysical_concept"
	PartnerOrg         = "partner_org"
	NasaMission        = "nasa_mission"
	Alias              = "alias"
	GcmdProject        = "gcmd_project"
	GcmdInstrument     = "gcmd_instrument"
	GcmdPlatform       = "gcmd_platform"
	GcmdPhenomenon     = "gcmd_phenomenon"
)

func init() {
	register[models.Campaign](Campaign,
		Relation{Key: "focus_areas", Field: "FocusAreas", Target: FocusArea},
		Relation{Key: "seasons", Field: "Seasons", Target: Season},
		Relation{Key: "repositories", Field: "Repositories", Target: Repository},
		Relation{Key: "partner_orgs", Field: "PartnerOrgs", Target: PartnerOrg},
		Relation{Key: "nasa_missions", Field: "NasaMissions", Target: NasaMission},
		Relation{Key: "geophysical_concepts", Field: "GeophysicalConcepts", Target: GeophysicalConcept},
		Relation{Key: "gcmd_projects", Field: "GcmdProjects", Target: GcmdProject},
		Relation{Key: "gcmd_phenomena", Field: "GcmdPhenomena", Target: GcmdPhenomenon},
	)
	register[models.Deployment](Deployment,
		Relation{Key: "geographical_regions", Field: "GeographicalRegions", Target: GeographicalRegion},
	)
	register[models.IOP](IOP)
	register[models.SignificantEvent](SignificantEvent)
	register[models.CollectionPeriod](CollectionPeriod,
		Relation{Key: "instruments", Field: "Instruments", Target: Instrument},
	)
	register[models.Platform](Platform,
		Relation{Key: "gcmd_platforms", Field: "GcmdPlatforms", Target: GcmdPlatform},
	)
	register[models.Instrument](Instrument,
		Relation{Key: "instrument_types", Field: "InstrumentTypes", Target: InstrumentType},
		Relation{Key: "measurement_regions", Field: "MeasurementRegions", Target: MeasurementRegion},
		Relation{Key: "repositories", Field: "Repositories", Target: Repository},
		Relation{Key: "gcmd_instruments", Field: "GcmdInstruments", Target: GcmdInstrument},
		Relation{Key: "gcmd_phenomena", Field: "GcmdPhenomena", Target: GcmdPhenomenon},
	)
	register[models.PlatformType](PlatformType)
	register[models.InstrumentType](InstrumentType)
	register[models.HomeBase](HomeBase)
	register[models.FocusArea](FocusArea)
	register[models.Season](Season)
	register[models.Repository](Repository)
	register[models.MeasurementRegion](MeasurementRegion)
	register[models.GeographicalRegion](GeographicalRegion)
	register[models.GeophysicalConcept](GeophysicalConcept)
	register[models.PartnerOrg](PartnerOrg)
	register[models.NasaMission](NasaMission)
	register[models.Alias](Alias)
	register[models.GcmdProject](GcmdProject)
	register[models.GcmdInstrument](GcmdInstrument)
	register[models.GcmdPlatform](GcmdPlatform)
	register[models.GcmdPhenomenon](GcmdPhenomenon)
}

// Lookup returns the content type with the given name.
func Lookup(name string) (*ContentType, bool) {
	ct, ok := contentTypes[name]
	return ct, ok
}

// All returns every registered content type ordered by name.
func All() []*ContentType {
	out := make([]*ContentType, 0, len(contentTypes))
	for _, ct := range contentTypes {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered content type name in order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, ct := range all {
		names[i] = ct.Name
	}
	return names
}

// Linking is a relation on an owning content type that points at a target.
type Linking struct {
	Owner    *ContentType
	Relation Relation
}

// LinkedFrom returns every relation whose target is the given content type,
// for example the campaign and instrument relations that hold gcmd_phenomenon.
func LinkedFrom(target string) []Linking {
	var out []Linking
	for _, ct := range All() {
		for _, r := range ct.Relations {
			if r.Target == target {
				out = append(out, Linking{Owner: ct, Relation: r})
			}
		}
	}
	return out
}

// Models returns a zero value of every registered model, for migrations.
func Models() []any {
	all := All()
	out := make([]any, len(all))
	for i, ct := range all {
		out[i] = ct.New()
	}
	return out
}
