// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"fmt"
)

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appPreRelease is set at link time for pre-release builds:
//
//	go build -ldflags "-X github.com/project-illium/emxd/repo.appPreRelease=beta"
var appPreRelease = ""

// VersionString returns the semver version of the binary.
func VersionString() string {
	v := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appPreRelease != "" {
		v += "-" + appPreRelease
	}
	return v
}
