// Package appfs embeds the files shipped with the binaries: SQL migrations, email templates & static assets.
package appfs

import "embed"

//go:embed migrations/*.sql all:assets
var FS embed.FS
