package appfs

import "embed"

// FS embeds non-Go assets needed at runtime (DB migrations, email templates).
//
//go:embed migrations all:templates
var FS embed.FS
