package sql

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	INSERT_PROJECT_STATEMENT = `INSERT INTO projects (project_name, table_name, target) VALUES (?, ?, ?) RETURNING id, created_at;`

	SELECT_PROJECT_STATEMENT = `SELECT id, project_name, table_name, target, job_id, created_at FROM projects WHERE id = ?;`

	COUNT_PROJECTS_STATEMENT = `SELECT COUNT(*) FROM projects;`

	LIST_PROJECTS_STATEMENT = `SELECT id, project_name, table_name, target, job_id, created_at FROM projects ORDER BY project_name, id LIMIT ? OFFSET ?;`

	// A changed project invalidates the job, whose parameters were built from it.
	UPDATE_PROJECT_STATEMENT = `UPDATE projects SET project_name = ?, table_name = ?, target = ?, job_id = CASE WHEN project_name = ? AND table_name = ? AND target = ? THEN job_id ELSE NULL END WHERE id = ?;`

	DELETE_PROJECT_STATEMENT = `DELETE FROM projects WHERE id = ?;`

	SET_JOB_ID_IF_ABSENT_STATEMENT = `UPDATE projects SET job_id = ? WHERE id = ? AND job_id IS NULL;`

	SELECT_JOB_ID_STATEMENT = `SELECT job_id FROM projects WHERE id = ?;`

	CLEAR_JOB_ID_STATEMENT = `UPDATE projects SET job_id = NULL WHERE id = ? AND job_id = ?;`
)

func getUnsupportedDriverError(driver string) error {
	return fmt.Errorf("unsupported driver: %s", driver)
}

// rebind rewrites ? placeholders into the positional form the driver expects.
// The statements above never contain a literal question mark.
func rebind(driver string, query string) string {
	if driver != POSTGRES_DRIVER {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
