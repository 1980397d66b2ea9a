package models

// Recommendation records a curator's judgment on whether a GCMD keyword
// should be linked to a CASEI object. A nil Result means undecided.
type Recommendation struct {
	Base
	ChangeID    string `gorm:"type:uuid;not null;uniqueIndex:uq_recommendations_change_object" json:"change_id"`
	ContentType string `gorm:"not null" json:"content_type"`
	ObjectID    string `gorm:"type:uuid;not null;uniqueIndex:uq_recommendations_change_object" json:"object_id"`
	Result      *bool  `json:"result"`
	Submitted   bool   `gorm:"not null;default:false" json:"submitted"`
}
