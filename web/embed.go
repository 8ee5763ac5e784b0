// Package web embeds the desk's HTML templates and stylesheet.
package web

import "embed"

// Templates holds layouts, partials and pages.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static holds assets served under /static/.
//
//go:embed static/css/*.css
var Static embed.FS
