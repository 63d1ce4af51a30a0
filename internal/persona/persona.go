// Package persona defines the stances a bot can be asked to argue from.
package persona

import "sort"

// Persona is an extra instruction appended to a bot's system prompt.
type Persona struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Prompt      string `json:"prompt" yaml:"prompt"`
}

// DefaultPersonas returns the built-in personas.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			ID:          "proponent",
			Name:        "Proponent",
			Description: "Defends the topic and builds on the strongest arguments for it",
			Prompt: `Argue in favour of the topic.
- Lead with your strongest argument
- Answer objections directly instead of repeating yourself
- Concede points that are clearly correct`,
		},
		{
			ID:          "opponent",
			Name:        "Opponent",
			Description: "Challenges the topic and looks for weaknesses",
			Prompt: `Argue against the topic.
- Point out risks, costs and missing evidence
- Address the other side's latest point before adding a new one
- Concede points that are clearly correct`,
		},
		{
			ID:          "skeptic",
			Name:        "Skeptic",
			Description: "Questions assumptions and demands evidence from both sides",
			Prompt: `Question every assumption, including your own.
- Ask for evidence behind strong claims
- Separate facts from opinions
- Agree only when the argument holds up`,
		},
		{
			ID:          "pragmatist",
			Name:        "Pragmatist",
			Description: "Looks for practical common ground",
			Prompt: `Focus on what is practical and achievable.
- Look for common ground with the other side
- Propose concrete compromises
- Say clearly when you agree`,
		},
	}
}

// Catalog resolves persona IDs against the built-ins plus custom entries.
// Custom entries override built-ins with the same ID.
type Catalog struct {
	byID map[string]Persona
}

// NewCatalog builds a catalog from the built-ins and custom personas.
func NewCatalog(custom ...Persona) *Catalog {
	c := &Catalog{byID: make(map[string]Persona)}
	for _, p := range DefaultPersonas() {
		c.byID[p.ID] = p
	}
	for _, p := range custom {
		if p.ID == "" {
			continue
		}
		c.byID[p.ID] = p
	}
	return c
}

// Get returns a persona by ID, or nil.
func (c *Catalog) Get(id string) *Persona {
	p, ok := c.byID[id]
	if !ok {
		return nil
	}
	return &p
}

// IDs returns every known persona ID in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns a built-in persona by ID.
func Get(id string) *Persona {
	for _, p := range DefaultPersonas() {
		if p.ID == id {
			return &p
		}
	}
	return nil
}

// Valid checks if id names a built-in persona.
func Valid(id string) bool {
	return Get(id) != nil
}
