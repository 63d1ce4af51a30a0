package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/botdebate/internal/core"
)

func fixture() (*core.Debate, []*core.Turn) {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	completed := created.Add(5 * time.Minute)
	d := &core.Debate{
		ID:               "0f8c2a1e-6b7d-4c1a-9e51-3d2f4a5b6c7d",
		Topic:            "Social networks do more harm than good",
		BotA:             "Bot1",
		BotB:             "Bot2",
		Status:           core.StatusConverged,
		AgreementReached: true,
		CoherenceScore:   0.82,
		CreatedAt:        created,
		UpdatedAt:        completed,
		CompletedAt:      &completed,
	}
	turns := []*core.Turn{
		{ID: "t1", DebateID: d.ID, Number: 1, Speaker: "Bot1", Content: "Networks erode attention.", Relevance: 0.6, Coherence: 1, CreatedAt: created},
		{ID: "t2", DebateID: d.ID, Number: 2, Speaker: "Bot2", Content: "They connect people — across borders.", Relevance: 0.4, Coherence: 0.7, CreatedAt: created.Add(time.Minute)},
		{ID: "t3", DebateID: d.ID, Number: 3, Speaker: "Bot1", Content: "Networks erode attention.", Relevance: 0.6, Coherence: 0.9, Duplicate: true, CreatedAt: created.Add(2 * time.Minute)},
	}
	return d, turns
}

func TestGetExporter(t *testing.T) {
	for _, f := range []Format{FormatMarkdown, "md", "MARKDOWN", FormatJSON, FormatPDF} {
		_, err := GetExporter(f)
		assert.NoError(t, err, f)
	}
	_, err := GetExporter("docx")
	assert.Error(t, err)
}

func TestGenerateFilename(t *testing.T) {
	d, _ := fixture()
	assert.Equal(t, "debate_20260314_Social_networks_do_more_harm_than_good.md", GenerateFilename(d, "md"))

	d.Topic = strings.Repeat("Соцсети: вред? ", 10)
	name := GenerateFilename(d, "pdf")
	assert.True(t, utf8.ValidString(name))
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, "?")

	d.Topic = "???"
	assert.Equal(t, "debate_20260314_0f8c2a1e.json", GenerateFilename(d, "json"))
}

func TestMarkdownExporter(t *testing.T) {
	d, turns := fixture()
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(d, turns, &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Social networks do more harm than good\n"))
	assert.Contains(t, out, "- **Bot1:** 2 turns (1 repeated)")
	assert.Contains(t, out, "- **Bot2:** 1 turns")
	assert.Contains(t, out, "### Turn 2 - Bot2")
	assert.Contains(t, out, "*· repeated*")
	assert.Contains(t, out, "Agreement Reached")
	assert.Contains(t, out, "**Duration:** 5 minutes")
	assert.Contains(t, out, "Exported from botdebate")
}

func TestMarkdownExporter_NoTurns(t *testing.T) {
	d, _ := fixture()
	d.Status = core.StatusStopped
	d.AgreementReached = false
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(d, nil, &buf))
	assert.Contains(t, buf.String(), "*No turns recorded.*")
	assert.Contains(t, buf.String(), "Stopped without agreement")
}

func TestJSONExporter(t *testing.T) {
	d, turns := fixture()
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(d, turns, &buf))

	var got ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, d.ID, got.Debate.ID)
	assert.Len(t, got.Turns, 3)
	assert.Equal(t, "Agreement reached", got.Outcome)
	assert.Equal(t, botStats{Turns: 2, Duplicates: 1}, got.Bots["Bot1"])

	buf.Reset()
	require.NoError(t, (&JSONExporter{}).Export(d, nil, &buf))
	assert.Contains(t, buf.String(), `"turns": []`)
}

func TestPDFExporter(t *testing.T) {
	d, turns := fixture()
	var buf bytes.Buffer
	require.NoError(t, (&PDFExporter{}).Export(d, turns, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "pdf", (&PDFExporter{}).FileExtension())
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "\"quoted\" -- and...", sanitizeText("“quoted” — and…"))
	assert.Equal(t, "caf\xe9", sanitizeText("café"))
	assert.Equal(t, "??", sanitizeText("да"))
}
