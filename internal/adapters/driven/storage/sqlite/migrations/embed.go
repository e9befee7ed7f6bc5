// Package migrations holds the numbered schema migrations applied by the
// sqlite store. NNN_name.up.sql moves the schema forward and
// NNN_name.down.sql reverses it.
package migrations

import "embed"

//go:embed *.up.sql *.down.sql
var Files embed.FS
