// Package content holds the static résumé rendered on the home page.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed resume.yaml
var resumeYAML []byte

type Contact struct {
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	LinkedIn string `yaml:"linkedin"`
}

type SkillGroup struct {
	Title string   `yaml:"title"`
	Items []string `yaml:"items"`
}

type Job struct {
	Title    string   `yaml:"title"`
	Company  string   `yaml:"company"`
	Period   string   `yaml:"period"`
	Location string   `yaml:"location"`
	Duties   []string `yaml:"duties"`
}

type Projects struct {
	Intro string   `yaml:"intro"`
	Blurb string   `yaml:"blurb"`
	Names []string `yaml:"names"`
}

type School struct {
	Degree      string `yaml:"degree"`
	Institution string `yaml:"institution"`
	Period      string `yaml:"period"`
	Location    string `yaml:"location"`
}

// Resume is everything the home page shows besides the two forms.
type Resume struct {
	Name           string       `yaml:"name"`
	Headline       string       `yaml:"headline"`
	Tagline        string       `yaml:"tagline"`
	About          string       `yaml:"about"`
	Contact        Contact      `yaml:"contact"`
	Skills         []SkillGroup `yaml:"skills"`
	Experience     []Job        `yaml:"experience"`
	Projects       Projects     `yaml:"projects"`
	Education      []School     `yaml:"education"`
	Certifications []string     `yaml:"certifications"`
}

// Load parses the embedded résumé.
func Load() (*Resume, error) {
	return Parse(resumeYAML)
}

// Parse decodes a résumé document, rejecting unknown keys.
func Parse(data []byte) (*Resume, error) {
	var r Resume
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode resume: %w", err)
	}
	if r.Name == "" {
		return nil, errors.New("decode resume: name is required")
	}
	return &r, nil
}
