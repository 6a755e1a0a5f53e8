package domain

// ParamType is the JSON-schema type of an operation parameter
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamObject  ParamType = "object"
)

// Parameter describes one argument of a menu operation
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Properties  []Parameter // for ParamObject
}

// OperationSpec is a menu entry: the name and parameter schema offered to the oracle
type OperationSpec struct {
	Kind        OperationKind
	Description string
	Parameters  []Parameter
}

// JSONSchema renders the parameter list as a JSON-schema object
func (s OperationSpec) JSONSchema() map[string]any {
	return objectSchema(s.Parameters)
}

func objectSchema(params []Parameter) map[string]any {
	props := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Type == ParamObject {
			nested := objectSchema(p.Properties)
			prop["properties"] = nested["properties"]
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// CompletionRequest is what the router sends to the oracle
type CompletionRequest struct {
	System  string
	History Conversation
	// Menu is empty for second-pass requests
	Menu []OperationSpec
}

// Call is a structured operation request from the oracle
type Call struct {
	Name string
	Args map[string]any
}

// Decision is the oracle's answer: free text, or a call when Call is non-nil
type Decision struct {
	Text string
	Call *Call
}

// StreamToken is a single fragment of a streamed reply
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}
