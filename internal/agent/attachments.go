package agent

import (
	"fmt"
	"os"
	"path/filepath"
)

// Attachment is a pinned file reference included verbatim in the preamble
// of every model call until the user detaches it. Unlike
// a read_file result, an attachment lives in the system preamble rather
// than the tool-result stream pass 1/2 compress, so it is excluded from
// budget eviction by construction; only the preamble's own sub-budget
// (dynamicPreamble, AssemblePreamble) can trim it, least-recently-attached
// first.
type Attachment struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Seq     int    `json:"seq"` // attach order, used as AssemblePreamble's Recency
}

// AttachFile reads path (relative to the agent's workDir, or absolute) and
// pins its content to every subsequent model call's preamble. Re-attaching
// an already-pinned path refreshes its content snapshot and moves it to
// most-recently-attached.
func (a *Agent) AttachFile(path string) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(a.workDir, path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	rel, err := filepath.Rel(a.workDir, abs)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	a.attachSeq++
	for i, att := range a.attachments {
		if att.Path == rel {
			a.attachments[i] = Attachment{Path: rel, Content: string(data), Seq: a.attachSeq}
			a.refreshSystemMessage()
			return nil
		}
	}
	a.attachments = append(a.attachments, Attachment{Path: rel, Content: string(data), Seq: a.attachSeq})
	a.refreshSystemMessage()
	return nil
}

// DetachFile unpins path, reporting whether it had been attached.
func (a *Agent) DetachFile(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(a.workDir, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)

	for i, att := range a.attachments {
		if att.Path == rel {
			a.attachments = append(a.attachments[:i], a.attachments[i+1:]...)
			a.refreshSystemMessage()
			return true
		}
	}
	return false
}

// Attachments returns the currently pinned files, in attach order.
func (a *Agent) Attachments() []Attachment {
	out := make([]Attachment, len(a.attachments))
	copy(out, a.attachments)
	return out
}
