// Package models defines the domain types shared by the skill index tooling.
package models

import "time"

// DocumentMeta is a lightweight representation returned by list operations.
type DocumentMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is one markdown file of a skill as recorded in the link graph.
type Document struct {
	Skill       string    `json:"skill"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	Triggers    []string  `json:"triggers,omitempty"`
	Type        string    `json:"type,omitempty"`
	Checksum    string    `json:"checksum"`
	Reachable   bool      `json:"reachable"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Link represents a directed edge between two files of a skill.
type Link struct {
	Skill  string `json:"skill"`
	Source string `json:"source"`
	Line   int    `json:"line"`
	Raw    string `json:"raw"`
	Target string `json:"target"`
	Exists bool   `json:"exists"`
}

// SearchResult is one hit of a reference search.
type SearchResult struct {
	Skill       string `json:"skill"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Snippet     string `json:"snippet,omitempty"`
}
