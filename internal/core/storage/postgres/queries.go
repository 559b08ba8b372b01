package postgres

// Introspection and journal queries. Dataset reads and writes build their
// statements at runtime because table and column names are caller supplied.

const (
	// queryTableExists checks a table (or view) in information_schema.
	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1
			  AND table_name = $2
		)
	`

	// queryColumnExists checks a single column of a table.
	queryColumnExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = $1
			  AND table_name = $2
			  AND column_name = $3
		)
	`

	// queryColumnType returns the data_type of a single column.
	queryColumnType = `
		SELECT data_type
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		  AND column_name = $3
	`

	// queryInsertRun records one grouping run.
	queryInsertRun = `
		INSERT INTO class_group_runs (
			id, dataset, fields, num_field, text_field,
			combinations, applied, skipped, matched, state,
			started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
)
