package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlDupEntry is MySQL error 1062 (ER_DUP_ENTRY).
const mysqlDupEntry = 1062

// IsDuplicateEntry reports whether err is a unique-constraint violation.
// Covers both the MySQL driver error and the sqlite message gorm
// surfaces in tests.
func IsDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDupEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
