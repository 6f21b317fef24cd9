package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrNoRepos reports an empty or missing repository list. Callers treat it
// as a warning: the scan simply has nothing to do.
var ErrNoRepos = errors.New("no repositories configured")

// Repo is one configured repository root.
type Repo struct {
	Path string `yaml:"path"`
	Name string `yaml:"name,omitempty"`
}

// DisplayName is Name, or the last path element.
func (r Repo) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(filepath.Clean(r.Path))
}

// UnmarshalYAML accepts both "- /path" and "- {path: /path, name: x}".
func (r *Repo) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.Path = node.Value
		return nil
	case yaml.MappingNode:
		type plain Repo
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*r = Repo(p)
		return nil
	default:
		return fmt.Errorf("line %d: repo entry must be a path or a mapping", node.Line)
	}
}

// MarshalYAML writes bare paths when there is no name.
func (r Repo) MarshalYAML() (any, error) {
	if r.Name == "" {
		return r.Path, nil
	}
	type plain Repo
	return plain(r), nil
}

type reposFile struct {
	Repos []Repo `yaml:"repos"`
}

// LoadRepos reads the repository list. A missing file returns ErrNoRepos;
// a file of the wrong shape is a configuration error.
func LoadRepos(path string) ([]Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRepos
		}
		return nil, fmt.Errorf("read repos file: %w", err)
	}

	var rf reposFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse repos file %s: %w", path, err)
	}

	repos := rf.Repos[:0]
	for _, r := range rf.Repos {
		r.Path = expandHome(r.Path)
		if r.Path != "" {
			repos = append(repos, r)
		}
	}
	if len(repos) == 0 {
		return nil, ErrNoRepos
	}
	return repos, nil
}

const reposHeader = "# Repositories to scan for worktrees\n# Add paths to git repos you want to track\n"

// SaveRepos writes the list atomically.
func SaveRepos(path string, repos []Repo) error {
	data, err := yaml.Marshal(reposFile{Repos: repos})
	if err != nil {
		return fmt.Errorf("marshal repos: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(reposHeader), data...), 0644); err != nil {
		return fmt.Errorf("write repos file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename repos file: %w", err)
	}
	return nil
}

// AddRepo appends root unless an entry with the same path already exists.
// It reports whether the list changed.
func AddRepo(path string, repo Repo) (bool, error) {
	repos, err := LoadRepos(path)
	if err != nil && !errors.Is(err, ErrNoRepos) {
		return false, err
	}
	if slices.ContainsFunc(repos, func(r Repo) bool { return filepath.Clean(r.Path) == filepath.Clean(repo.Path) }) {
		return false, nil
	}
	return true, SaveRepos(path, append(repos, repo))
}

// RemoveRepo drops every entry for root and reports whether any existed.
func RemoveRepo(path, root string) (bool, error) {
	repos, err := LoadRepos(path)
	if err != nil {
		if errors.Is(err, ErrNoRepos) {
			return false, nil
		}
		return false, err
	}
	kept := slices.DeleteFunc(slices.Clone(repos), func(r Repo) bool {
		return filepath.Clean(r.Path) == filepath.Clean(root)
	})
	if len(kept) == len(repos) {
		return false, nil
	}
	return true, SaveRepos(path, kept)
}
