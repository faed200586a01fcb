package leadflow

import _ "embed"

// Version is the release of this module, kept in the VERSION file.
//
//go:embed VERSION
var Version string
