// Package deps parses requirements-style dependency files.
//
// The dependency file declared in the project configuration uses the
// conventional requirements format: one dependency per line, "#" comments,
// blank lines, and "-r <file>" include directives. Each environment
// installs the parsed dependencies before running its commands.
package deps

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Requirement is a single parsed dependency declaration.
type Requirement struct {
	// Name is the bare package name, lowercased for comparison.
	Name string

	// Constraint is the version constraint including its operator
	// (e.g., ">=1.4.0", "==2.1"). Empty when the line declares no
	// constraint.
	Constraint string

	// Raw is the original line with comments stripped, exactly as it
	// will be handed to the installer.
	Raw string
}

// String returns the requirement in its installable form.
func (r Requirement) String() string {
	return r.Raw
}

// constraintOperators lists the version-constraint operators, longest
// first so that two-character operators are matched before their
// one-character prefixes.
var constraintOperators = []string{"===", "==", ">=", "<=", "~=", "!=", ">", "<"}

// ParseFile reads and parses a dependency file, following "-r" includes
// recursively. Include paths resolve relative to the including file.
//
// Include cycles are detected and reported as errors rather than looping
// forever.
func ParseFile(path string) ([]Requirement, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependency file path %q: %w", path, err)
	}
	return parseFile(abs, map[string]bool{})
}

// parseFile is the recursive worker behind ParseFile. The visiting map
// tracks files on the current include chain for cycle detection.
func parseFile(path string, visiting map[string]bool) ([]Requirement, error) {
	if visiting[path] {
		return nil, fmt.Errorf("dependency file include cycle detected at %s", path)
	}
	visiting[path] = true
	defer delete(visiting, path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dependency file: %w", err)
	}
	defer f.Close()

	var reqs []Requirement
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		// Include directive: "-r other.txt" pulls in another file,
		// resolved relative to the current file.
		if include, ok := strings.CutPrefix(line, "-r "); ok {
			includePath := strings.TrimSpace(include)
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(filepath.Dir(path), includePath)
			}
			nested, err := parseFile(includePath, visiting)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			reqs = append(reqs, nested...)
			continue
		}

		req, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dependency file %s: %w", path, err)
	}

	return reqs, nil
}

// parseLine parses a single non-blank, comment-stripped requirement line
// into its name and constraint parts.
func parseLine(line string) (Requirement, error) {
	// Environment markers ("; python_version < ...") qualify when a
	// dependency applies. The marker is not interpreted here; it stays
	// part of Raw so the installer sees it, but it is stripped before
	// extracting the name and constraint.
	spec := line
	if idx := strings.Index(spec, ";"); idx >= 0 {
		spec = strings.TrimSpace(spec[:idx])
	}
	if spec == "" {
		return Requirement{}, fmt.Errorf("requirement line has a marker but no package: %q", line)
	}

	for _, op := range constraintOperators {
		if idx := strings.Index(spec, op); idx >= 0 {
			name := strings.TrimSpace(spec[:idx])
			constraint := strings.TrimSpace(spec[idx:])
			if name == "" {
				return Requirement{}, fmt.Errorf("requirement line has a constraint but no package name: %q", line)
			}
			return Requirement{
				Name:       strings.ToLower(name),
				Constraint: constraint,
				Raw:        line,
			}, nil
		}
	}

	// No constraint: the whole spec is the package name. Names may carry
	// extras in brackets ("package[extra]"); the bracket part is not part
	// of the comparable name.
	name := spec
	if idx := strings.Index(name, "["); idx >= 0 {
		name = name[:idx]
	}
	if strings.ContainsAny(name, " \t") {
		return Requirement{}, fmt.Errorf("malformed requirement line: %q", line)
	}

	return Requirement{
		Name: strings.ToLower(strings.TrimSpace(name)),
		Raw:  line,
	}, nil
}

// stripComment removes "#" comments and surrounding whitespace from a
// line. A "#" only starts a comment at the beginning of the line or
// after whitespace, so URLs with fragments survive.
func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return ""
	}
	for i := 1; i < len(trimmed); i++ {
		if trimmed[i] == '#' && (trimmed[i-1] == ' ' || trimmed[i-1] == '\t') {
			return strings.TrimSpace(trimmed[:i])
		}
	}
	return trimmed
}
