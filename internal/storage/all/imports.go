// Package all registers every built-in storage backend. Import it for side
// effects from binaries:
//
//	import _ "rowexport/internal/storage/all"
package all

import (
	_ "rowexport/internal/storage/memory"
	_ "rowexport/internal/storage/mssql"
	_ "rowexport/internal/storage/mysql"
	_ "rowexport/internal/storage/postgres"
	_ "rowexport/internal/storage/sqlite"
)
