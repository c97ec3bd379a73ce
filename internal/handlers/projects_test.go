package handlers_test

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

const titanicProject = `{"project_name":"titanic_4","table_name":"cat.default.titanic","target":"Survived"}`

func createProject(t *testing.T, env *testEnv, body string) *api.ProjectResource {
	t.Helper()
	w := call(env.handlers.HandleCreateProject, http.MethodPost, "/api/v1/projects", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	return decode[api.ProjectResource](t, w)
}

func TestProjectHandlers(t *testing.T) {
	t.Run("create and get a project", func(t *testing.T) {
		env := newTestEnv(t)
		created := createProject(t, env, titanicProject)
		if created.ID <= 0 || created.JobID != nil {
			t.Fatalf("Unexpected created project %+v", created)
		}

		w := call(env.handlers.HandleGetProject, http.MethodGet, "/api/v1/projects/x", strconv.FormatInt(created.ID, 10), "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
		}
		project := decode[api.ProjectResource](t, w)
		if project.ProjectName != "titanic_4" || project.TableName != "cat.default.titanic" || project.Target != "Survived" {
			t.Errorf("Unexpected project %+v", project)
		}
	})

	t.Run("invalid bodies are rejected", func(t *testing.T) {
		env := newTestEnv(t)
		w := call(env.handlers.HandleCreateProject, http.MethodPost, "/api/v1/projects", "", `{"project_name":`)
		expectError(t, w, http.StatusBadRequest, "invalid_json_request")

		w = call(env.handlers.HandleCreateProject, http.MethodPost, "/api/v1/projects", "", `{"project_name":"a/b","table_name":"t","target":"y"}`)
		expectError(t, w, http.StatusBadRequest, "request_validation_failed")

		w = call(env.handlers.HandleCreateProject, http.MethodPost, "/api/v1/projects", "", `{"project_name":"p","table_name":"a.b.c.d","target":"y"}`)
		expectError(t, w, http.StatusBadRequest, "request_validation_failed")
	})

	t.Run("bad and unknown ids", func(t *testing.T) {
		env := newTestEnv(t)
		w := call(env.handlers.HandleGetProject, http.MethodGet, "/api/v1/projects/abc", "abc", "")
		expectError(t, w, http.StatusBadRequest, "invalid_path_parameter")

		w = call(env.handlers.HandleGetProject, http.MethodGet, "/api/v1/projects/0", "0", "")
		expectError(t, w, http.StatusBadRequest, "invalid_path_parameter")

		w = call(env.handlers.HandleGetProject, http.MethodGet, "/api/v1/projects/", "", "")
		expectError(t, w, http.StatusNotFound, "missing_path_parameter")

		w = call(env.handlers.HandleGetProject, http.MethodGet, "/api/v1/projects/999", "999", "")
		expectError(t, w, http.StatusNotFound, "resource_not_found")
	})

	t.Run("list projects with paging", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 3; i++ {
			createProject(t, env, fmt.Sprintf(`{"project_name":"project_%d","table_name":"t","target":"y"}`, i))
		}

		w := call(env.handlers.HandleListProjects, http.MethodGet, "/api/v1/projects?limit=2", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
		}
		list := decode[api.ProjectResourceList](t, w)
		if list.TotalCount != 3 || list.Limit != 2 || len(list.Items) != 2 {
			t.Fatalf("Unexpected page %+v", list)
		}
		if list.Items[0].ProjectName != "project_0" {
			t.Errorf("Expected projects ordered by name, got %s first", list.Items[0].ProjectName)
		}
		if list.Next == nil || !strings.Contains(list.Next.Href, "offset=2") {
			t.Fatalf("Expected a next page at offset 2, got %+v", list.Next)
		}

		w = call(env.handlers.HandleListProjects, http.MethodGet, "/api/v1/projects?limit=2&offset=2", "", "")
		list = decode[api.ProjectResourceList](t, w)
		if len(list.Items) != 1 || list.Next != nil {
			t.Errorf("Expected the last page, got %+v", list)
		}
	})

	t.Run("empty list has items", func(t *testing.T) {
		env := newTestEnv(t)
		w := call(env.handlers.HandleListProjects, http.MethodGet, "/api/v1/projects", "", "")
		if !strings.Contains(w.Body.String(), `"items":[]`) {
			t.Errorf("Expected an empty items array, got %s", w.Body.String())
		}
	})

	t.Run("invalid paging", func(t *testing.T) {
		env := newTestEnv(t)
		for _, target := range []string{"/api/v1/projects?limit=0", "/api/v1/projects?limit=x", "/api/v1/projects?offset=-1"} {
			w := call(env.handlers.HandleListProjects, http.MethodGet, target, "", "")
			expectError(t, w, http.StatusBadRequest, "query_parameter_invalid")
		}
	})

	t.Run("update, patch and delete", func(t *testing.T) {
		env := newTestEnv(t)
		created := createProject(t, env, titanicProject)
		id := strconv.FormatInt(created.ID, 10)

		w := call(env.handlers.HandleUpdateProject, http.MethodPut, "/api/v1/projects/"+id, id, `{"project_name":"titanic_5","table_name":"cat.default.titanic","target":"Survived"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		if updated := decode[api.ProjectResource](t, w); updated.ProjectName != "titanic_5" {
			t.Errorf("Expected the new name, got %s", updated.ProjectName)
		}

		w = call(env.handlers.HandlePatchProject, http.MethodPatch, "/api/v1/projects/"+id, id, `{"target":"Fare"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		patched := decode[api.ProjectResource](t, w)
		if patched.Target != "Fare" || patched.ProjectName != "titanic_5" {
			t.Errorf("Unexpected patched project %+v", patched)
		}

		w = call(env.handlers.HandlePatchProject, http.MethodPatch, "/api/v1/projects/"+id, id, `{"target":null}`)
		expectError(t, w, http.StatusBadRequest, "request_validation_failed")

		w = call(env.handlers.HandleDeleteProject, http.MethodDelete, "/api/v1/projects/"+id, id, "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected status %d, got %d", http.StatusNoContent, w.Code)
		}
		w = call(env.handlers.HandleGetProject, http.MethodGet, "/api/v1/projects/"+id, id, "")
		expectError(t, w, http.StatusNotFound, "resource_not_found")
	})
}
