// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package version

// Version is the semantic version of this build, overridden via
// -ldflags "-X github.com/otakit/lode/version.Version=..." by release
// builds.
var Version = "0.0+git"
