// Package molecule loads compound descriptor files. A descriptor is a small text
// file of "key = value" fields describing geometry, basis set and electronic
// structure parameters. Parsing is deliberately forgiving: a field that cannot be
// read falls back to its default so that one malformed descriptor never blocks a
// batch.
package molecule

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

const (
	// DefaultBasis is used when a descriptor declares no basis set. It is also
	// the basis the degraded fallback variant is rewritten to.
	DefaultBasis = "sto-3g"

	// FallbackDirName is the folder degraded descriptor files are moved to after use.
	FallbackDirName = "compounds_fallback"
)

var basisAssignmentPattern = regexp.MustCompile(`basis\s*=\s*["'][^"']*["']`)

// Spec is one compound's parsed descriptor.
type Spec struct {
	// Name is the descriptor file stem and identifies the job throughout a batch.
	Name string
	// Path of the descriptor file this spec was read from.
	Path string
	// Raw descriptor text, kept for complexity estimation and cache keying.
	Raw string

	Atom     string
	Basis    string
	Symmetry bool
	SpinSq   int
	Charge   int
	NFrozen  int
}

// LoadDir enumerates all *.txt descriptors in dir, sorted by name.
// It fails only when the directory itself cannot be listed or contains no
// descriptors; an unreadable file is logged and carried with empty content so
// downstream estimation degrades instead of aborting the batch.
func LoadDir(dir string) ([]*Spec, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Wrapf(err, "cannot read compounds directory %s", dir)
	}
	if len(matches) == 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrNotFound{
			Type:  "compound descriptor",
			Value: filepath.Join(dir, "*.txt"),
		})
	}
	sort.Strings(matches)
	specs := make([]*Spec, 0, len(matches))
	for _, path := range matches {
		spec, err := Load(path)
		if err != nil {
			log.WithError(err).Warnf("failed to read descriptor %s; scheduling it with empty content", path)
			spec = &Spec{Name: stem(path), Path: path, Basis: DefaultBasis}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Load reads and parses a single descriptor file.
func Load(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	spec := Parse(string(raw))
	spec.Name = stem(path)
	spec.Path = path
	return spec, nil
}

// Parse extracts the recognised fields from descriptor text. Unparseable fields
// keep their defaults.
func Parse(raw string) *Spec {
	spec := &Spec{
		Raw:     raw,
		Basis:   DefaultBasis,
		NFrozen: 1,
	}
	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := splitField(line)
		if !ok {
			continue
		}
		switch key {
		case "atom":
			spec.Atom = value
		case "basis":
			if value != "" {
				spec.Basis = value
			}
		case "symmetry":
			if b, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
				spec.Symmetry = b
			}
		case "spin_sq":
			if n, err := strconv.Atoi(value); err == nil {
				spec.SpinSq = n
			}
		case "charge":
			if n, err := strconv.Atoi(value); err == nil {
				spec.Charge = n
			}
		case "n_frozen":
			if n, err := strconv.Atoi(value); err == nil {
				spec.NFrozen = n
			}
		}
	}
	return spec
}

// DegradedCopy writes a cheaper variant of the descriptor with the basis rewritten
// to sto-3g and returns its spec. The variant keeps the original job name so that
// results are recorded against the original compound. The file is written next to
// the original as <stem>_fallback_sto3g.txt.
func DegradedCopy(spec *Spec) (*Spec, error) {
	if spec.Path == "" {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "spec.Path",
			Value:   spec.Path,
			Message: "cannot degrade a descriptor that was not loaded from a file",
		})
	}
	degradedRaw := basisAssignmentPattern.ReplaceAllString(spec.Raw, `basis = "`+DefaultBasis+`"`)
	path := strings.TrimSuffix(spec.Path, ".txt") + "_fallback_sto3g.txt"
	if err := os.WriteFile(path, []byte(degradedRaw), 0o644); err != nil {
		return nil, errors.WithStack(err)
	}
	degraded := Parse(degradedRaw)
	degraded.Name = spec.Name
	degraded.Path = path
	degraded.Basis = DefaultBasis
	return degraded, nil
}

// MoveToFallbackDir archives a degraded descriptor file under
// <dir>/compounds_fallback/<name>_fallback.txt once it has been consumed.
func MoveToFallbackDir(degraded *Spec, dir string) (string, error) {
	fallbackDir := filepath.Join(dir, FallbackDirName)
	if err := os.MkdirAll(fallbackDir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	target := filepath.Join(fallbackDir, degraded.Name+"_fallback.txt")
	if err := os.Rename(degraded.Path, target); err != nil {
		return "", errors.WithStack(err)
	}
	return target, nil
}

func splitField(line string) (key string, value string, ok bool) {
	i := strings.Index(line, "=")
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	value = strings.TrimSpace(line[i+1:])
	value = strings.Trim(value, `"'`)
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
