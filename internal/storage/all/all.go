// Package all registers every storage backend. Commands blank-import it so
// the factory registry knows each kind without the main package naming the
// drivers individually.
package all

import (
	_ "github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage/mssql"
	_ "github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage/postgres"
	_ "github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage/sqlite"
)
