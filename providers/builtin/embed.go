// Package builtin embeds the provider scripts vx ships inside its own
// binary, the highest-priority discovery root in spec.md §4.2.
package builtin

import "embed"

//go:embed *.js
var FS embed.FS
