package upload

import (
	"fmt"

	"analytics-uploader/internal/database"
)

// GetAnalyticsSchema returns DDL for a destination table and the identifier
// the table assigns to its first row. The uploader never creates tables; this
// is for development databases and tests.
func GetAnalyticsSchema(dialect database.Dialect, table string) (string, int64) {
	switch dialect {
	case database.DialectMySQL:
		return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			time VARCHAR(64) NOT NULL,
			customer VARCHAR(255) NOT NULL,
			namespace VARCHAR(255) NOT NULL,
			event VARCHAR(255) NOT NULL,
			additional TEXT NOT NULL
		);
	`, table), 1
	case database.DialectSQLite:
		return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			customer TEXT NOT NULL,
			namespace TEXT NOT NULL,
			event TEXT NOT NULL,
			additional TEXT NOT NULL
		);
	`, table), 1
	default:
		return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER GENERATED BY DEFAULT AS IDENTITY (MINVALUE 0 START WITH 0) PRIMARY KEY,
			time TEXT NOT NULL,
			customer TEXT NOT NULL,
			namespace TEXT NOT NULL,
			event TEXT NOT NULL,
			additional TEXT NOT NULL
		);
	`, table), 0
	}
}

/*
MongoDB document structure:

analytics: {
  _id: <ObjectId>,
  id: <int64, assigned by the uploader>,
  time: <string>,
  customer: <string>,
  namespace: <string>,
  event: <string>,
  additional: <string>
}

*/
