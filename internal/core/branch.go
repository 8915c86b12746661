package core

// Repo is one discovered account/repo pairing: a bare VCR on disk plus
// the branches its manifest marks public (servable) and buildable
// (eligible for the external build tool).
type Repo struct {
	Account   string
	Repo      string
	RepoPath  string
	Public    []string
	Buildable []string
}

// BuildProfile names an external build tool invocation and which
// branches it applies to. The source repo carries two live shapes for
// this (one profile-id-only, one profile-aware with a Command); per the
// later-appearing-variant rule this is the profile-aware shape.
type BuildProfile struct {
	ID        string
	Command   []string
	Buildable []string
}

// BuildProfileRef is the manifest's "build.profile" value: either a
// reference to a named profile declared in global settings (ProfileID)
// or a profile defined inline in the manifest itself (Inline).
type BuildProfileRef struct {
	ProfileID string
	Inline    *BuildProfile
}

// Manifest is a repo's locomote.json, resolved through symbolic-link
// ($ref) substitution. Defaults are {Public: ["public"]} when the file
// is missing.
type Manifest struct {
	Public  []string
	Build   *BuildProfileRef
	Auth    map[string]any
	Indexed bool
}

// DefaultManifest is used whenever a repo has no locomote.json.
func DefaultManifest() *Manifest {
	return &Manifest{Public: []string{"public"}}
}
