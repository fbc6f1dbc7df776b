package types

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Attachment describes a piece of renderable media produced by a tool,
// typically a generated ad creative (image or video) hosted externally.
type Attachment struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Parameter is one declared tool parameter. Order matters: the first
// declared parameter receives bare scalar arguments from the model.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

// Schema renders the declared parameters as a JSON schema object in the
// shape model runtimes expect for tool declarations.
func (d ToolDefinition) Schema() map[string]any {
	properties := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// FirstParameter returns the name of the first declared parameter, or ""
// when the tool declares none.
func (d ToolDefinition) FirstParameter() string {
	if len(d.Parameters) == 0 {
		return ""
	}
	return d.Parameters[0].Name
}
