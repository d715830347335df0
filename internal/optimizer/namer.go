package optimizer

import "github.com/google/uuid"

// Namer picks the scratch artifact name for one call.
type Namer interface {
	Name() string
	// Shared reports whether every call gets the same name.
	Shared() bool
}

// UniqueNamer hands out input-<uuid>.js so concurrent calls never collide.
type UniqueNamer struct{}

func (UniqueNamer) Name() string { return "input-" + uuid.NewString() + ".js" }
func (UniqueNamer) Shared() bool { return false }

// FixedNamer always returns the same name. Calls using it are serialized.
type FixedNamer string

func (n FixedNamer) Name() string {
	if n == "" {
		return FixedArtifactName
	}
	return string(n)
}

func (FixedNamer) Shared() bool { return true }

func namerFor(naming Naming) Namer {
	if naming == NamingFixed {
		return FixedNamer(FixedArtifactName)
	}
	return UniqueNamer{}
}
