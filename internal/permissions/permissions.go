// Package permissions parses the declarative group document and expands it
// into concrete permission codenames. Seeding the database is done by the
// services layer.
package permissions

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"casei/internal/models"
	"casei/internal/registry"
)

//go:embed groups.yaml
var defaultDocument []byte

// Codename of the capability that gates the deploy trigger.
const CanDeploy = "admin_ui.can_deploy"

// App is one permission namespace.
type App struct {
	FromRegistry bool     `yaml:"from_registry"`
	Models       []string `yaml:"models"`
	Custom       []string `yaml:"custom"`
}

// Grant selects permissions of one app for a group. Empty Verbs means all.
type Grant struct {
	App          string   `yaml:"app"`
	Verbs        []string `yaml:"verbs"`
	ExcludeVerbs []string `yaml:"exclude_verbs"`
}

// GroupDef declares a group and the role whose users belong to it.
type GroupDef struct {
	Name   string      `yaml:"name"`
	Role   models.Role `yaml:"role"`
	Grants []Grant     `yaml:"grants"`
}

// Document is the parsed groups file.
type Document struct {
	Verbs  []string       `yaml:"verbs"`
	Apps   map[string]App `yaml:"apps"`
	Groups []GroupDef     `yaml:"groups"`
}

// Parse decodes a groups document.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("permissions: document is empty")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("permissions: decode document: %w", err)
	}
	for _, g := range doc.Groups {
		if !g.Role.Valid() {
			return nil, fmt.Errorf("permissions: group %q has unknown role %d", g.Name, g.Role)
		}
		for _, grant := range g.Grants {
			if _, ok := doc.Apps[grant.App]; !ok {
				return nil, fmt.Errorf("permissions: group %q grants unknown app %q", g.Name, grant.App)
			}
		}
	}
	return &doc, nil
}

// Default returns the embedded groups document.
func Default() *Document {
	doc, err := Parse(defaultDocument)
	if err != nil {
		panic(err)
	}
	return doc
}

func (d *Document) appModels(name string) []string {
	app := d.Apps[name]
	if app.FromRegistry {
		return registry.Names()
	}
	return app.Models
}

// Permissions expands every app into its permission rows, sorted by full codename.
func (d *Document) Permissions() []models.Permission {
	var out []models.Permission
	for appName, app := range d.Apps {
		for _, model := range d.appModels(appName) {
			for _, verb := range d.Verbs {
				out = append(out, models.Permission{
					AppLabel: appName,
					Codename: verb + "_" + model,
					Name:     "Can " + verb + " " + model,
				})
			}
		}
		for _, custom := range app.Custom {
			out = append(out, models.Permission{AppLabel: appName, Codename: custom, Name: custom})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullCodename() < out[j].FullCodename() })
	return out
}

// GroupPermissions returns the full codenames granted to the named group.
func (d *Document) GroupPermissions(group string) []string {
	var def *GroupDef
	for i := range d.Groups {
		if d.Groups[i].Name == group {
			def = &d.Groups[i]
		}
	}
	if def == nil {
		return nil
	}

	seen := map[string]bool{}
	for _, grant := range def.Grants {
		app := d.Apps[grant.App]
		verbs := grant.Verbs
		if len(verbs) == 0 {
			verbs = d.Verbs
		}
		for _, model := range d.appModels(grant.App) {
			for _, verb := range verbs {
				if contains(grant.ExcludeVerbs, verb) {
					continue
				}
				seen[grant.App+"."+verb+"_"+model] = true
			}
		}
		if len(grant.Verbs) == 0 {
			for _, custom := range app.Custom {
				seen[grant.App+"."+custom] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for codename := range seen {
		out = append(out, codename)
	}
	sort.Strings(out)
	return out
}

// GroupForRole returns the group users with the given role belong to.
func (d *Document) GroupForRole(role models.Role) string {
	for _, g := range d.Groups {
		if g.Role == role {
			return g.Name
		}
	}
	return ""
}

// Codename builds the full codename for a verb on a content type.
func Codename(verb, contentType string) string {
	return "data_models." + verb + "_" + contentType
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
