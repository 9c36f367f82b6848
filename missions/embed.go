// Package missions embeds the built-in mission definitions.
package missions

import "embed"

// FS holds every shipped definition at its root.
//
//go:embed *.json *.yaml
var FS embed.FS
