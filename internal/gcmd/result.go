package gcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"casei/internal/models"
)

// Entry is one keyword difference recorded as a change request.
type Entry struct {
	Action          models.ChangeAction `json:"action"`
	ChangeID        string              `json:"change_id"`
	GcmdUUID        string              `json:"gcmd_uuid"`
	Name            string              `json:"name"`
	Recommendations int                 `json:"recommendations"`
	Published       bool                `json:"published"`
}

// Result summarizes the sync of one scheme.
type Result struct {
	Scheme  string   `json:"scheme"`
	Fetched int      `json:"fetched"`
	Skipped int      `json:"skipped"`
	Entries []Entry  `json:"entries"`
	Errors  []string `json:"errors,omitempty"`
}

// Count returns the number of entries with the given action.
func (r *Result) Count(action models.ChangeAction) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// Message is the human readable summary shown to operators.
func (r *Result) Message() string {
	return fmt.Sprintf("Successfully Synced %d %s gcmd keywords - %d Create, %d Update, %d Delete Change records created!",
		r.Fetched, r.Scheme,
		r.Count(models.ChangeActionCreate),
		r.Count(models.ChangeActionUpdate),
		r.Count(models.ChangeActionDelete),
	)
}

// MarshalJSON adds the summary message to the result.
func (r *Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		*plain
		Message string `json:"message"`
	}{plain: (*plain)(r), Message: r.Message()})
}

var reportHeader = []string{"scheme", "action", "change_id", "gcmd_uuid", "name", "recommendations", "published"}

// WriteReport writes every entry of the results as CSV.
func WriteReport(w io.Writer, results []*Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, r := range results {
		for _, e := range r.Entries {
			record := []string{
				r.Scheme,
				string(e.Action),
				e.ChangeID,
				e.GcmdUUID,
				e.Name,
				strconv.Itoa(e.Recommendations),
				strconv.FormatBool(e.Published),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveReport writes the CSV report into dir and returns its path.
func SaveReport(dir string, results []*Result, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}
	path := filepath.Join(dir, "gcmd_sync_"+now.UTC().Format("20060102T150405Z")+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}
	if err := WriteReport(f, results); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing report: %w", err)
	}
	return path, nil
}

func toMap(obj any) (map[string]interface{}, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
