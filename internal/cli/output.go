package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
)

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// printStructured writes v as indented JSON, or as YAML when asYAML is set.
func printStructured(w io.Writer, v any, asYAML bool) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// parseTagRef reads "repo:tag" or a bare "tag", which leaves Repo empty.
func parseTagRef(s string) (links.TagRef, error) {
	repo, tag, found := strings.Cut(s, ":")
	if !found {
		repo, tag = "", s
	}
	if tag == "" {
		return links.TagRef{}, fmt.Errorf("invalid tag reference %q: empty tag", s)
	}
	return links.TagRef{Tag: tag, Repo: repo}, nil
}

// parseRepoTag is parseTagRef for references that must name a repo.
func parseRepoTag(s string) (links.TagRef, error) {
	ref, err := parseTagRef(s)
	if err != nil {
		return ref, err
	}
	if ref.Repo == "" {
		return ref, fmt.Errorf("invalid tag reference %q: want repo:tag", s)
	}
	return ref, nil
}
