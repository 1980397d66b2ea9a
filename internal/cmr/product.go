package cmr

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
)

// DataProduct is the flattened view of a CMR collection.
type DataProduct struct {
	ConceptID       string          `json:"concept_id"`
	DOI             string          `json:"doi"`
	Projects        json.RawMessage `json:"cmr_projects"`
	ShortName       string          `json:"cmr_short_name"`
	EntryTitle      string          `json:"cmr_entry_title"`
	Dates           json.RawMessage `json:"cmr_dates"`
	PlatsAndInsts   json.RawMessage `json:"cmr_plats_and_insts"`
	ScienceKeywords json.RawMessage `json:"cmr_science_keywords"`
	Abstract        string          `json:"cmr_abstract"`
	DataFormats     []string        `json:"cmr_data_formats"`
}

// ExtractDOI returns the collection DOI, falling back to a DOI quoted in the
// first citation ("... DOI: https://doi.org/10.5067/XYZ").
func ExtractDOI(c Collection) string {
	if c.UMM.DOI.DOI != "" {
		return c.UMM.DOI.DOI
	}
	if len(c.UMM.CollectionCitations) == 0 {
		return ""
	}
	details := c.UMM.CollectionCitations[0].OtherCitationDetails
	_, after, ok := strings.Cut(details, "DOI: ")
	if !ok {
		return ""
	}
	_, doi, ok := strings.Cut(after, ".org/")
	if !ok {
		return ""
	}
	return doi
}

// ProcessCollection flattens one collection.
func ProcessCollection(c Collection) DataProduct {
	formats := []string{}
	for _, info := range c.UMM.ArchiveAndDistributionInformation.FileDistributionInformation {
		formats = append(formats, info.Format)
	}
	return DataProduct{
		ConceptID:       c.Meta.ConceptID,
		DOI:             ExtractDOI(c),
		Projects:        orDefault(c.UMM.Projects, "null"),
		ShortName:       c.UMM.ShortName,
		EntryTitle:      c.UMM.EntryTitle,
		Dates:           orDefault(c.UMM.TemporalExtents, "[]"),
		PlatsAndInsts:   orDefault(c.UMM.Platforms, "[]"),
		ScienceKeywords: orDefault(c.UMM.ScienceKeywords, "{}"),
		Abstract:        c.UMM.Abstract,
		DataFormats:     formats,
	}
}

// ProcessCollections flattens every collection.
func ProcessCollections(collections []Collection) []DataProduct {
	out := make([]DataProduct, 0, len(collections))
	for _, c := range collections {
		out = append(out, ProcessCollection(c))
	}
	return out
}

func orDefault(raw json.RawMessage, def string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(def)
	}
	return raw
}

var csvHeader = []string{
	"concept_id", "doi", "cmr_short_name", "cmr_entry_title", "cmr_projects",
	"cmr_dates", "cmr_plats_and_insts", "cmr_science_keywords", "cmr_abstract", "cmr_data_formats",
}

// WriteCSV writes products as CSV. Nested UMM values are written as JSON.
func WriteCSV(w io.Writer, products []DataProduct) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range products {
		record := []string{
			p.ConceptID,
			p.DOI,
			p.ShortName,
			p.EntryTitle,
			string(p.Projects),
			string(p.Dates),
			string(p.PlatsAndInsts),
			string(p.ScienceKeywords),
			p.Abstract,
			strings.Join(p.DataFormats, ";"),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes products as an indented JSON array.
func WriteJSON(w io.Writer, products []DataProduct) error {
	if products == nil {
		products = []DataProduct{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(products)
}
