// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"maps"
	"path"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/keyward/keyward/internal/account"
)

// DefaultLanguage is used when a label has no entry for the requested
// language.
const DefaultLanguage = "EN"

const commonLabels = "common"

//go:embed labels/*.yaml
var labelsFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

// Labels is the content of one label file. Every map is keyed by a two
// letter upper-case language code.
type Labels struct {
	Subject map[string]string            `yaml:"subject,omitempty" json:"subject,omitempty" jsonschema:"title=Subject,description=Email subject by language"`
	Labels  map[string]map[string]string `yaml:"labels,omitempty" json:"labels,omitempty" jsonschema:"title=Labels,description=Template placeholders by name then language"`
}

// Email is a rendered notification.
type Email struct {
	To      string
	Subject string
	HTML    string
}

type entry struct {
	labels Labels
	tmpl   *template.Template
}

// Catalog renders notifications from localized labels and HTML templates.
type Catalog struct {
	common  Labels
	entries map[account.Template]entry
}

// LoadCatalog loads the embedded catalog. Every label file is validated
// against the catalog schema and every lifecycle template must be present.
func LoadCatalog() (*Catalog, error) {
	return loadCatalog(labelsFS, templatesFS)
}

func loadCatalog(labelFiles, templateFiles fs.FS) (*Catalog, error) {
	common, err := readLabels(labelFiles, commonLabels)
	if err != nil {
		return nil, err
	}

	c := &Catalog{common: common, entries: make(map[account.Template]entry)}
	for _, name := range account.Templates() {
		labels, err := readLabels(labelFiles, string(name))
		if err != nil {
			return nil, err
		}
		if labels.Subject[DefaultLanguage] == "" {
			return nil, oops.Code("CATALOG_INVALID").With("template", string(name)).
				Errorf("missing %s subject", DefaultLanguage)
		}

		tmpl, err := template.New("layout.html").
			Option("missingkey=zero").
			ParseFS(templateFiles, "templates/layout.html", "templates/"+string(name)+".html")
		if err != nil {
			return nil, oops.Code("CATALOG_INVALID").With("template", string(name)).Wrap(err)
		}
		c.entries[name] = entry{labels: labels, tmpl: tmpl}
	}
	return c, nil
}

func readLabels(files fs.FS, name string) (Labels, error) {
	file := path.Join("labels", name+".yaml")
	data, err := fs.ReadFile(files, file)
	if err != nil {
		return Labels{}, oops.Code("CATALOG_INVALID").With("file", file).Wrap(err)
	}
	if stage, err := checkLabels(data); err != nil {
		return Labels{}, oops.Code("CATALOG_INVALID").With("file", file, "stage", stage).Wrap(err)
	}
	var l Labels
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Labels{}, oops.Code("CATALOG_INVALID").With("file", file).Wrap(err)
	}
	return l, nil
}

// Render builds the email for n. Substitutions take precedence over labels
// of the same name; unknown placeholders render empty.
func (c *Catalog) Render(n account.Notification) (Email, error) {
	e, ok := c.entries[n.Template]
	if !ok {
		return Email{}, oops.Code("TEMPLATE_UNKNOWN").With("template", string(n.Template)).
			Errorf("unknown notification template")
	}

	lang := strings.ToUpper(n.Language)
	data := make(map[string]string)
	for key, byLang := range c.common.Labels {
		data[key] = localize(byLang, lang)
	}
	for key, byLang := range e.labels.Labels {
		data[key] = localize(byLang, lang)
	}
	maps.Copy(data, n.Substitutions)

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return Email{}, oops.Code("TEMPLATE_RENDER_FAILED").With("template", string(n.Template)).Wrap(err)
	}
	return Email{
		To:      n.To,
		Subject: localize(e.labels.Subject, lang),
		HTML:    buf.String(),
	}, nil
}

// localize picks lang, then DefaultLanguage, then "".
func localize(byLang map[string]string, lang string) string {
	if v, ok := byLang[lang]; ok {
		return v
	}
	return byLang[DefaultLanguage]
}
