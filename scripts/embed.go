// Package scripts holds the Risor helper modules available to reference
// book scripts via import.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
