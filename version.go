package main

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// Version is the release version of this build.
const Version = "1.1.0"

// checkStoreVersion gates loading of a settings store written by a
// different build. Same or older major versions load; a store from a
// newer major version is refused rather than half-understood. A store
// with no version key is stamped with the current version.
func checkStoreVersion(store *ConfigStore) error {
	recorded := store.Get(ConfigVersion)
	if recorded == "" {
		store.Set(ConfigVersion, Version)
		return nil
	}

	stored, err := goversion.NewVersion(recorded)
	if err != nil {
		return fmt.Errorf("bad version %q in settings store: %w", recorded, err)
	}

	current, err := goversion.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("bad build version %q: %w", Version, err)
	}

	if stored.Segments()[0] > current.Segments()[0] {
		return fmt.Errorf("settings store written by %s, this is %s", stored, current)
	}

	return nil
}
