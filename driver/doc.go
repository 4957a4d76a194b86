// Package driver provides a database/sql driver over the streadmulti engine.
//
// A data source name is a glob pattern with optional query parameters. All
// matched GeoJSON, GeoPackage and Shapefile sources are read as one stream
// and loaded into a single table of an in-memory SQLite database.
//
// Usage:
//
//	import _ "github.com/nao1215/streadmulti/driver"
//	db, err := sql.Open("streadmulti", "data/*.gpkg?layer=roads&encoding=CP932")
//	rows, err := db.Query(`SELECT ".filename", count(*) FROM st_read GROUP BY 1`)
package driver
