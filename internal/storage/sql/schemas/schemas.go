package schemas

// The job_id column is not part of the first version of the table, databases created
// before it was introduced get it added by the migration.

const SQLITE_SCHEMA = `
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    target TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_name
ON projects (project_name);
`

const POSTGRES_SCHEMA = `
CREATE TABLE IF NOT EXISTS projects (
    id BIGSERIAL PRIMARY KEY,
    project_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    target TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_name
ON projects (project_name);
`

// Column probes return the number of matching columns (0 or 1).
const SQLITE_COLUMN_EXISTS = `SELECT COUNT(*) FROM pragma_table_info('projects') WHERE name = ?;`

const POSTGRES_COLUMN_EXISTS = `SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = 'projects' AND column_name = $1;`

const ADD_JOB_ID_COLUMN = `ALTER TABLE projects ADD COLUMN job_id TEXT;`

func SchemaForDriver(driver string) string {
	switch driver {
	case "sqlite":
		return SQLITE_SCHEMA
	case "pgx":
		return POSTGRES_SCHEMA
	default:
		return ""
	}
}

func ColumnExistsForDriver(driver string) string {
	switch driver {
	case "sqlite":
		return SQLITE_COLUMN_EXISTS
	case "pgx":
		return POSTGRES_COLUMN_EXISTS
	default:
		return ""
	}
}
