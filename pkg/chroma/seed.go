package chroma

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snippet is a knowledge-base article as written in the seed file
type Snippet struct {
	ID      string   `yaml:"id" json:"id"`
	Title   string   `yaml:"title" json:"title"`
	Content string   `yaml:"content" json:"content"`
	Tags    []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

func (s Snippet) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("snippet id is required")
	}
	if strings.TrimSpace(s.Content) == "" {
		return fmt.Errorf("snippet %s has no content", s.ID)
	}
	return nil
}

type seedFile struct {
	Snippets []Snippet `yaml:"snippets"`
}

// DefaultSnippets are loaded when no seed file is configured
func DefaultSnippets() []Snippet {
	return []Snippet{
		{
			ID:      "reset-password",
			Title:   "Reset password",
			Content: "If a user cannot login, ask them to reset their password using the 'Forgot Password' flow on the login page.",
			Tags:    []string{"account", "login"},
		},
		{
			ID:      "account-access",
			Title:   "Account access",
			Content: "For account access issues, verify the account email address and the last successful login time before escalating.",
			Tags:    []string{"account"},
		},
		{
			ID:      "contact-support",
			Title:   "Contacting support",
			Content: "Customers can reply to any support email or write to the support mailbox; urgent issues are answered first.",
			Tags:    []string{"general"},
		},
	}
}

// ParseSeed reads snippets from YAML
func ParseSeed(r io.Reader) ([]Snippet, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return []Snippet{}, nil
		}
		return nil, fmt.Errorf("parse knowledge base seed: %w", err)
	}
	seen := make(map[string]bool, len(f.Snippets))
	for i := range f.Snippets {
		s := &f.Snippets[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.Title == "" {
			s.Title = s.ID
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("snippet %d: %w", i, err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate snippet id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return f.Snippets, nil
}

// LoadSeed reads snippets from path, or returns DefaultSnippets when path is empty
func LoadSeed(path string) ([]Snippet, error) {
	if path == "" {
		return DefaultSnippets(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSeed(f)
}
