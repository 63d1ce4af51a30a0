// Package export handles exporting debates to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alienxp03/botdebate/internal/core"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Exporter defines the interface for exporting debates.
type Exporter interface {
	Export(debate *core.Debate, turns []*core.Turn, w io.Writer) error
	FileExtension() string
}

// GetExporter returns an exporter for the given format. "md" is accepted
// as an alias of markdown.
func GetExporter(format Format) (Exporter, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatMarkdown, "md":
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

const maxTopicRunes = 50

var filenameReplacer = strings.NewReplacer(
	" ", "_",
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\n", "_",
	"\t", "_",
)

// GenerateFilename creates a filename for the export. The topic is cut on
// a rune boundary.
func GenerateFilename(debate *core.Debate, ext string) string {
	topic := []rune(strings.TrimSpace(debate.Topic))
	if len(topic) > maxTopicRunes {
		topic = topic[:maxTopicRunes]
	}
	name := filenameReplacer.Replace(string(topic))
	if name == "" {
		name = core.ShortID(debate.ID)
	}

	timestamp := debate.CreatedAt.Format("20060102")
	return fmt.Sprintf("debate_%s_%s.%s", timestamp, name, ext)
}

// botStats counts accepted turns and duplicates per speaker.
type botStats struct {
	Turns      int `json:"turns"`
	Duplicates int `json:"duplicates"`
}

func statsFor(turns []*core.Turn) map[string]botStats {
	out := make(map[string]botStats)
	for _, t := range turns {
		s := out[t.Speaker]
		s.Turns++
		if t.Duplicate {
			s.Duplicates++
		}
		out[t.Speaker] = s
	}
	return out
}

func outcome(debate *core.Debate) string {
	switch {
	case debate.Status == core.StatusConverged || debate.AgreementReached:
		return "Agreement reached"
	case debate.Status == core.StatusStopped:
		return "Stopped without agreement"
	default:
		return "In progress"
	}
}

func formatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
