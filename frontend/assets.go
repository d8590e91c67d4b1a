// Package frontend embeds the built web UI shared by the host and every
// widget process. Each window picks its view from the kind in the URL hash.
package frontend

import "embed"

//go:embed all:dist
var Assets embed.FS
