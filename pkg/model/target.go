package model

// Target is an output configuration derived once per entry from
// package.json and user options (spec §3, §4.3).
type Target struct {
	Name string

	DistDir       string
	DistEntry     string
	PublicURL     string

	Env *Environment

	// SourceLocation is an opaque reference to where this target was
	// declared (package.json field, or a user-supplied descriptor),
	// used only for diagnostics.
	SourceLocation string
}
