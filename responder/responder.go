// Package responder implements spec §4.F and §4.G: turning a resolved
// filesystem path into a response body, content type, and status.
//
// Responders are modeled as a small closed variant rather than a deep
// interface hierarchy, per the spec's own design note and the teacher's
// preference for flat dispatch over polymorphism.
package responder

import "strings"

// Kind is the closed variant of response producers.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindPhp
)

// Response is the uncompressed result of a responder, ready for the
// connection worker to negotiate an encoding and write.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// Headers carries any extra response headers the responder wants to
	// set (e.g. the PHP responder's Location:), already validated.
	Headers map[string]string
	// Cacheable is true only when the artifact is safe to store in the
	// content cache (200, not a directory listing, not PHP, under the
	// configured max size).
	Cacheable bool
	// SourceModTime is the source file's modification time in Unix
	// seconds. Cache expiry is TTL-based and does not consult it.
	SourceModTime int64
}

// Classify picks the responder Kind for fsPath, per spec §9's Design
// Notes: extension + file-type inspection, no deep hierarchy.
func Classify(fsPath string, isDir bool) Kind {
	if isDir {
		return KindDir
	}
	if strings.HasSuffix(strings.ToLower(fsPath), ".php") {
		return KindPhp
	}
	return KindFile
}
