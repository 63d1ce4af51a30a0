package debate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/core"
)

// DefaultSystemPrompt is the system message template sent to each bot.
const DefaultSystemPrompt = `You are {{.Name}}, taking part in an open-ended debate with {{.Opponent}}.
Topic: "{{.Topic}}"

Reply to {{.Opponent}}'s latest message in one or two short paragraphs.
Bring a new argument every turn instead of repeating earlier points.
Stay on the topic. If you are genuinely convinced, say clearly that you agree.
{{- if .Persona}}

{{.Persona}}
{{- end}}`

const openingPrompt = `Open the debate on the topic: "%s". State your position and your strongest argument.`

const regenerationPrompt = `Your last reply repeated points that were already made. Answer again with a different argument or a new angle.`

// promptData is the template input for DefaultSystemPrompt.
type promptData struct {
	Topic    string
	Name     string
	Opponent string
	Persona  string
}

func parsePrompt(text string) (*template.Template, error) {
	tmpl, err := template.New("system").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system prompt: %w", err)
	}
	return tmpl, nil
}

// buildMessages frames the history from the speaker's point of view: its
// own turns become assistant messages and the opponent's become user
// messages, so each bot's output is the other's prompt.
func buildMessages(tmpl *template.Template, topic string, history []core.Message, speaker, opponent bot.Profile, personaPrompt string) ([]core.Message, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, promptData{
		Topic:    topic,
		Name:     speaker.Name(),
		Opponent: opponent.Name(),
		Persona:  personaPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute system prompt: %w", err)
	}

	msgs := make([]core.Message, 0, len(history)+2)
	msgs = append(msgs, core.Message{Role: core.RoleSystem, Content: strings.TrimSpace(buf.String())})

	// Chat templates expect a user message first; the speaker who opened
	// the debate gets the opening instruction replayed.
	if len(history) == 0 || history[0].Speaker == speaker.Name() {
		msgs = append(msgs, core.Message{Role: core.RoleUser, Content: fmt.Sprintf(openingPrompt, topic)})
	}

	for _, h := range history {
		role := core.RoleUser
		if h.Speaker == speaker.Name() {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.Message{Role: role, Speaker: h.Speaker, Content: h.Content})
	}
	return msgs, nil
}

// withRegenerationHint returns msgs plus an instruction to avoid repeating.
func withRegenerationHint(msgs []core.Message) []core.Message {
	out := make([]core.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, core.Message{Role: core.RoleUser, Content: regenerationPrompt})
}
