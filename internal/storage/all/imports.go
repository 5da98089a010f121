// Package all wires every built-in storage backend into the storage factory.
// Import it for side effects:
//
//	import _ "github.com/sophie2chance2/foster-care-analysis/internal/storage/all"
//
// after which storage.New accepts the kinds "postgres", "mssql", "mysql" and
// "sqlite".
package all

import (
	_ "github.com/sophie2chance2/foster-care-analysis/internal/storage/mssql"
	_ "github.com/sophie2chance2/foster-care-analysis/internal/storage/mysql"
	_ "github.com/sophie2chance2/foster-care-analysis/internal/storage/postgres"
	_ "github.com/sophie2chance2/foster-care-analysis/internal/storage/sqlite"
)
