package resources

import "embed"

//go:embed migrations rules.yaml
var FS embed.FS
