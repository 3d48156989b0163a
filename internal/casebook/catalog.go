package casebook

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed cases/*.json
var builtin embed.FS

var ErrNotFound = errors.New("not found")

// Catalog is the immutable set of authored cases and exams.
type Catalog struct {
	cases map[string]Case
	exams map[string]Exam
	order []string
}

// file is the on-disk shape: a bundle of cases and/or exams.
type file struct {
	Cases []Case `json:"cases"`
	Exams []Exam `json:"exams"`
}

// Default loads the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(builtin, "cases")
}

// Load reads every *.json bundle in dir and validates the result.
func Load(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	cat := &Catalog{cases: map[string]Case{}, exams: map[string]Exam{}}
	for _, n := range names {
		raw, err := fs.ReadFile(fsys, path.Join(dir, n))
		if err != nil {
			return nil, err
		}
		var f file
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		for _, c := range f.Cases {
			if err := cat.addCase(c); err != nil {
				return nil, fmt.Errorf("%s: %w", n, err)
			}
		}
		for _, e := range f.Exams {
			if _, dup := cat.exams[e.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate exam %q", n, e.ID)
			}
			cat.exams[e.ID] = e
		}
	}
	for _, e := range cat.exams {
		for _, id := range e.CaseIDs {
			if _, ok := cat.cases[id]; !ok {
				return nil, fmt.Errorf("exam %q references unknown case %q", e.ID, id)
			}
		}
	}
	return cat, nil
}

// New builds a catalog from in-memory definitions (tests, tooling).
func New(cases []Case, exams []Exam) (*Catalog, error) {
	cat := &Catalog{cases: map[string]Case{}, exams: map[string]Exam{}}
	for _, c := range cases {
		if err := cat.addCase(c); err != nil {
			return nil, err
		}
	}
	for _, e := range exams {
		cat.exams[e.ID] = e.clone()
	}
	return cat, nil
}

func (c *Catalog) addCase(cs Case) error {
	if strings.TrimSpace(cs.ID) == "" {
		return errors.New("case without id")
	}
	if _, dup := c.cases[cs.ID]; dup {
		return fmt.Errorf("duplicate case %q", cs.ID)
	}
	if err := Validate(cs); err != nil {
		return err
	}
	c.cases[cs.ID] = cs.clone()
	c.order = append(c.order, cs.ID)
	return nil
}

func (c *Catalog) Case(id string) (Case, error) {
	cs, ok := c.cases[id]
	if !ok {
		return Case{}, fmt.Errorf("case %q: %w", id, ErrNotFound)
	}
	return cs.clone(), nil
}

// Cases returns all cases in load order.
func (c *Catalog) Cases() []Case {
	out := make([]Case, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.cases[id].clone())
	}
	return out
}

func (c *Catalog) Exam(id string) (Exam, error) {
	e, ok := c.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("exam %q: %w", id, ErrNotFound)
	}
	return e.clone(), nil
}

func (c *Catalog) Exams() []Exam {
	out := make([]Exam, 0, len(c.exams))
	for _, e := range c.exams {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
