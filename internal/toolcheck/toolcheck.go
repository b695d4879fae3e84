// Package toolcheck reports whether the external LaTeX toolchain is installed.
package toolcheck

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the renderer relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements describes the compiler and converter pair in use.
func Requirements(compiler, converter string) []Requirement {
	return []Requirement{
		{Name: "compiler", Command: compiler, Description: "LaTeX to PDF"},
		{Name: "converter", Command: converter, Description: "PDF to image"},
	}
}

// Check evaluates the provided requirements.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// AllAvailable is true when every status is available.
func AllAvailable(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available {
			return false
		}
	}
	return true
}
