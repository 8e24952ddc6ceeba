//go:build e2e

package e2e

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenderExport = "\ufeffCodigo de Oferta,Cliente,Estado de Oferta,ID\n" +
	"OF-24-001,Minera Andina,ADJUDICADO,1\n" +
	"OF-24-002,Agua Lima,NO ADJUDICADO,2\n" +
	"OF-23-010,Minera Andina,PENDIENTE,3\n" +
	"SZ1-17,Electro Sur,ADJUDICADA,4\n" +
	"nan,,,\n"

type chatReply struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Route     string   `json:"route"`
	Notices   []string `json:"notices"`
}

func (e *E2ETestEnv) chat(t *testing.T, sessionID, query string) chatReply {
	t.Helper()
	resp, err := e.Post("/chat", map[string]string{"session_id": sessionID, "query": query}, "")
	require.NoError(t, err)

	var reply chatReply
	require.NoError(t, json.Unmarshal(resp.Data, &reply))
	return reply
}

// TestE2E_IngestAndChat loads an export through object storage and asks
// questions that exercise each route.
func TestE2E_IngestAndChat(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	stats := env.IngestCSV("licitaciones.csv", tenderExport)
	assert.Equal(t, service.IngestStats{Rows: 5, Inserted: 4, Skipped: 1}, stats)

	t.Run("schema reflects the export", func(t *testing.T) {
		resp, err := env.Post("/admin/schema/refresh", nil, testAdminToken)
		require.NoError(t, err)

		var schema struct {
			Keys   []string `json:"keys"`
			States []string `json:"states"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &schema))
		assert.ElementsMatch(t, []string{"codigo de oferta", "cliente", "estado de oferta", "id_excel"}, schema.Keys)
		assert.Contains(t, schema.States, "PENDIENTE")
	})

	t.Run("admin routes need the token", func(t *testing.T) {
		_, err := env.Get("/admin/schema", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")

		_, err = env.Get("/admin/schema", "wrong")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("aggregate question goes through SQL", func(t *testing.T) {
		reply := env.chat(t, "sql-session", "¿Cuántas licitaciones adjudicadas tenemos?")

		assert.Equal(t, "SQL", reply.Route)
		assert.Equal(t, `NARRADO [{"count":2}]`, reply.Answer)
	})

	t.Run("non SELECT synthesis falls back to retrieval", func(t *testing.T) {
		reply := env.chat(t, "rag-session", "dame el detalle de la oferta OF-24-001")

		assert.Equal(t, "SQL", reply.Route)
		assert.True(t, strings.HasPrefix(reply.Answer, "EVIDENCIA "), reply.Answer)
		assert.Contains(t, reply.Answer, "--- DOC (exact:codigo de oferta) ---")
		assert.Contains(t, reply.Answer, "Minera Andina")
	})

	t.Run("small talk goes to the general persona", func(t *testing.T) {
		reply := env.chat(t, "general-session", "cuéntame un chiste")

		assert.Equal(t, "GENERAL", reply.Route)
		assert.Equal(t, "Hola, soy Analista IA.", reply.Answer)
	})
}

// TestE2E_SessionLifecycle checks history is kept in Redis per session.
func TestE2E_SessionLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	first := env.chat(t, "", "cuéntame un chiste")
	require.NotEmpty(t, first.SessionID)

	env.chat(t, first.SessionID, "otro por favor")

	resp, err := env.Get("/sessions/"+first.SessionID, "")
	require.NoError(t, err)

	var history struct {
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	require.Len(t, history.History, 4)
	assert.Equal(t, "user", history.History[0].Role)
	assert.Equal(t, "cuéntame un chiste", history.History[0].Content)
	assert.Equal(t, "assistant", history.History[3].Role)

	t.Run("history reaches the router prompt", func(t *testing.T) {
		env.Model.mu.Lock()
		defer env.Model.mu.Unlock()
		last := ""
		for _, p := range env.Model.prompts {
			if strings.Contains(p, "Router.") {
				last = p
			}
		}
		assert.Contains(t, last, "cuéntame un chiste")
	})

	_, err = env.Delete("/sessions/"+first.SessionID, "")
	require.NoError(t, err)

	resp, err = env.Get("/sessions/"+first.SessionID, "")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.Empty(t, history.History)
}

// TestE2E_ThrottledModel checks the saturation message and wait notices.
func TestE2E_ThrottledModel(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	reply := env.chat(t, "busy-session", "cuéntame algo para saturar")

	assert.Equal(t, service.SaturatedMessage, reply.Answer)
	assert.NotEmpty(t, reply.Notices)
}

// TestE2E_CLI drives the built binaries against the running server.
func TestE2E_CLI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}

	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	t.Run("ask prints the answer", func(t *testing.T) {
		out, err := env.RunLicitai("", "ask", "--session", "cli-1", "cuéntame", "un", "chiste")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Hola, soy Analista IA.")
	})

	t.Run("ask shows wait notices before the answer", func(t *testing.T) {
		out, err := env.RunLicitai("", "ask", "--session", "cli-busy", "algo", "para", "saturar")
		require.NoError(t, err, out)

		notice := strings.Index(out, "⏳ IA saturada.")
		answer := strings.Index(out, service.SaturatedMessage)
		require.GreaterOrEqual(t, notice, 0, out)
		assert.Greater(t, answer, notice, out)
	})

	t.Run("ask --output returns JSON", func(t *testing.T) {
		out, err := env.RunLicitai("", "ask", "--output", "--session", "cli-2", "hola")
		require.NoError(t, err, out)

		var reply chatReply
		require.NoError(t, json.Unmarshal([]byte(out), &reply), out)
		assert.Equal(t, "cli-2", reply.SessionID)
	})

	t.Run("chat loop ends on salir", func(t *testing.T) {
		out, err := env.RunLicitai("hola\nsalir\n", "chat", "--session", "cli-3")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Sesión cli-3")
		assert.Contains(t, out, "Hola, soy Analista IA.")
	})

	t.Run("history and reset", func(t *testing.T) {
		out, err := env.RunLicitai("", "history", "--session", "cli-3")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Tú: hola")

		out, err = env.RunLicitai("", "reset", "--session", "cli-3")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Session cli-3 cleared")
	})

	t.Run("licitaid schema columns", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.csv")
		require.NoError(t, os.WriteFile(path, []byte(tenderExport), 0644))

		out, err := env.RunLicitaid("schema", "columns", path)
		require.NoError(t, err, out)
		assert.Contains(t, out, `"ID" -> id_excel`)
		assert.Contains(t, out, `"Codigo de Oferta" -> codigo de oferta`)
	})

	t.Run("licitaid schema ddl", func(t *testing.T) {
		out, err := env.RunLicitaid("schema", "ddl")
		require.NoError(t, err, out)
		assert.Contains(t, out, "VECTOR(768)")
	})
}
