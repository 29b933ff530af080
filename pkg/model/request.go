package model

// InvalidationKind classifies what kind of external change can stale a
// memoized request result (spec §3, §4.1).
type InvalidationKind string

const (
	InvalidationFileChange InvalidationKind = "file-change"
	InvalidationEnvVar      InvalidationKind = "env-var"
	InvalidationOption      InvalidationKind = "option"
	InvalidationOnStartup   InvalidationKind = "on-startup"
	InvalidationOnBuild     InvalidationKind = "on-build"
)

// Invalidation is a single subscription a request registers while running;
// if it fires before the next access, the cached result is discarded.
type Invalidation struct {
	Kind InvalidationKind
	// Key is the file path, env var name, or option name this
	// invalidation watches. Empty for marker kinds.
	Key string
}

// ChangeSet is the set of changes a build observes between runs: the
// input the request tracker checks recorded Invalidations against.
type ChangeSet struct {
	ChangedFiles map[string]struct{}
	ChangedEnv   map[string]struct{}
	ChangedOpts  map[string]struct{}
	OnStartup    bool
	OnBuild      bool
}

// Fires reports whether inv is stale under this change set.
func (c ChangeSet) Fires(inv Invalidation) bool {
	switch inv.Kind {
	case InvalidationFileChange:
		_, changed := c.ChangedFiles[inv.Key]
		return changed
	case InvalidationEnvVar:
		_, changed := c.ChangedEnv[inv.Key]
		return changed
	case InvalidationOption:
		_, changed := c.ChangedOpts[inv.Key]
		return changed
	case InvalidationOnStartup:
		return c.OnStartup
	case InvalidationOnBuild:
		return c.OnBuild
	default:
		return false
	}
}
