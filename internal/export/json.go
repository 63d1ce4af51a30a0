package export

import (
	"encoding/json"
	"io"

	"github.com/alienxp03/botdebate/internal/core"
)

// JSONExporter exports debates to JSON format.
type JSONExporter struct{}

// ExportData represents the full export structure.
type ExportData struct {
	Debate  *core.Debate        `json:"debate"`
	Turns   []*core.Turn        `json:"turns"`
	Outcome string              `json:"outcome"`
	Bots    map[string]botStats `json:"bots"`
}

// Export writes the debate as JSON.
func (e *JSONExporter) Export(debate *core.Debate, turns []*core.Turn, w io.Writer) error {
	if turns == nil {
		turns = []*core.Turn{}
	}
	data := ExportData{
		Debate:  debate,
		Turns:   turns,
		Outcome: outcome(debate),
		Bots:    statsFor(turns),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}
