package build

import (
	"path/filepath"
	"strings"

	"stylepipe/common"
)

// State of the compile unit.
type State int

const (
	StatePending State = iota
	StateValidating
	StateFailed
	StateMapping
	StateRewriting
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidating:
		return "validating"
	case StateFailed:
		return "failed"
	case StateMapping:
		return "mapping"
	case StateRewriting:
		return "rewriting"
	case StateEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Unit is single stylesheet going through the pipeline.
type Unit struct {
	// absolute path of the source
	Path string
	Cwd  string
	// outputs are placed relative to Base
	Base  string
	Style common.OutputStyle

	state State
}

// NewUnit creates unit with compressed output style. Relative path is
// resolved against cwd, empty base means directory of the source.
func NewUnit(path, cwd, base string) *Unit {
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	if len(base) == 0 {
		base = filepath.Dir(path)
	} else if !filepath.IsAbs(base) {
		base = filepath.Join(cwd, base)
	}
	return &Unit{
		Path:  filepath.Clean(path),
		Cwd:   cwd,
		Base:  filepath.Clean(base),
		Style: common.OutputStyleCompressed,
	}
}

func (u *Unit) State() State {
	return u.state
}

// name is source file name without extension.
func (u *Unit) name() string {
	base := filepath.Base(u.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// File is in-memory output handed to consumer.
type File struct {
	// absolute path
	Path     string
	Base     string
	Cwd      string
	Contents []byte
}

// Relative returns path of the file relative to its base.
func (f File) Relative() string {
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(f.Path)
	}
	return rel
}
