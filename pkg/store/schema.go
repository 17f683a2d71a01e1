package store

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const tableName = "prices"

// schemaStatements returns the idempotent DDL for driver, one statement each.
func schemaStatements(driver string) []string {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	priceType := "REAL"
	if driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		priceType = "DOUBLE PRECISION"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	` + idColumn + `,
	observed_at TEXT NOT NULL,
	source TEXT NOT NULL,
	origin TEXT NOT NULL,
	destination TEXT NOT NULL,
	departure_date TEXT NOT NULL,
	currency TEXT NOT NULL,
	price ` + priceType + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_route_date
ON ` + tableName + ` (origin, destination, departure_date)`,
	}
}

const insertSQL = `
INSERT INTO prices
(observed_at, source, origin, destination, departure_date, currency, price)
VALUES (?, ?, ?, ?, ?, ?, ?)`

const trailingAverageSQL = `
SELECT AVG(price)
FROM prices
WHERE origin = ?
  AND destination = ?
  AND currency = ?
  AND departure_date >= ?
  AND departure_date < ?`

// Ties on observed_at go to the row inserted last.
const latestPerCombinationSQL = `
WITH ranked AS (
    SELECT id, observed_at, source, origin, destination, departure_date, currency, price,
           ROW_NUMBER() OVER (
               PARTITION BY origin, destination, departure_date, source
               ORDER BY observed_at DESC, id DESC
           ) AS rn
    FROM prices
)
SELECT id, observed_at, source, origin, destination, departure_date, currency, price
FROM ranked
WHERE rn = 1
ORDER BY departure_date ASC, price ASC, origin ASC, destination ASC, source ASC`

const historySQL = `
SELECT id, observed_at, source, origin, destination, departure_date, currency, price
FROM prices
WHERE origin = ?
  AND destination = ?
  AND departure_date = ?
ORDER BY observed_at ASC, id ASC`
