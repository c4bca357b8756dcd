// Package workspace performs the filesystem side effects of workspace and
// tile changes: repository setup, agent directory provisioning, renames and
// cleanup, auth profile copying and the editable agent documents.
package workspace

import "fmt"

// Warnings collects non-fatal problems reported back to the caller.
type Warnings []string

// Addf appends a formatted warning.
func (w *Warnings) Addf(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// List returns the warnings as a non-nil slice.
func (w Warnings) List() []string {
	if w == nil {
		return []string{}
	}
	return []string(w)
}
