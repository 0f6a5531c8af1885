package cogito

import (
	"context"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// ToolSpec is the specification of a tool.
// It defines the interface and behavior of a tool that plan steps can invoke.
type ToolSpec struct {
	// Name is the unique identifier for the tool. Plan steps reference tools
	// by this name in their Action field.
	Name string

	// Description is a human-readable description of what the tool does.
	Description string

	// Parameters defines the input parameters that the tool accepts.
	Parameters map[string]*Parameter

	// Required is the list of required parameter names.
	Required []string
}

// Validate validates the tool specification.
func (s *ToolSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("tool", s))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidTool, "name is required")
	}

	for _, param := range s.Parameters {
		if err := param.Validate(); err != nil {
			return eb.Wrap(ErrInvalidTool, "invalid parameter")
		}
	}

	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return eb.Wrap(ErrInvalidTool, "required parameter not found", goerr.V("parameter", req))
		}
	}

	return nil
}

// ParameterType is the type of a parameter.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

// Parameter is a parameter of a tool.
type Parameter struct {
	// Title is the user-friendly name of the parameter. Optional.
	Title string

	// Type is the type of the parameter. Required.
	Type ParameterType

	// Description explains the purpose and expected format of the parameter.
	Description string

	// Required is the list of required field names when Type is Object.
	Required []string

	// Enum is the list of allowed values for the parameter.
	Enum []string

	// Properties defines the structure of object type parameters.
	Properties map[string]*Parameter

	// Items defines the element type of array type parameters.
	Items *Parameter

	// Number constraints.
	Minimum *float64
	Maximum *float64

	// String constraints.
	MinLength *int
	MaxLength *int
	Pattern   string

	// Array constraints.
	MinItems *int
	MaxItems *int

	// Default value used when the parameter is omitted.
	Default any
}

// Validate validates the parameter.
func (p *Parameter) Validate() error {
	eb := goerr.NewBuilder(goerr.V("parameter", p))

	if p.Type == "" {
		return eb.Wrap(ErrInvalidParameter, "type is required")
	}

	if p.Type == TypeObject {
		if p.Properties == nil {
			return eb.Wrap(ErrInvalidParameter, "properties is required for object type")
		}
		for _, prop := range p.Properties {
			if err := prop.Validate(); err != nil {
				return eb.Wrap(ErrInvalidParameter, "invalid property")
			}
		}
		for _, req := range p.Required {
			if _, ok := p.Properties[req]; !ok {
				return eb.Wrap(ErrInvalidParameter, "required field not found in properties", goerr.V("field", req))
			}
		}
	}

	if p.Type == TypeArray {
		if p.Items == nil {
			return eb.Wrap(ErrInvalidParameter, "items is required for array type")
		}
		if err := p.Items.Validate(); err != nil {
			return eb.Wrap(ErrInvalidParameter, "invalid items")
		}
		if p.MinItems != nil && p.MaxItems != nil && *p.MinItems > *p.MaxItems {
			return eb.Wrap(ErrInvalidParameter, "minItems must be less than or equal to maxItems")
		}
	}

	if p.Type == TypeNumber || p.Type == TypeInteger {
		if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
			return eb.Wrap(ErrInvalidParameter, "minimum must be less than or equal to maximum")
		}
	}

	if p.Type == TypeString {
		if p.MinLength != nil && p.MaxLength != nil && *p.MinLength > *p.MaxLength {
			return eb.Wrap(ErrInvalidParameter, "minLength must be less than or equal to maxLength")
		}
		if p.Pattern != "" {
			if _, err := regexp.Compile(p.Pattern); err != nil {
				return eb.Wrap(ErrInvalidParameter, "invalid pattern", goerr.V("pattern", p.Pattern))
			}
		}
	}

	return nil
}

// Tool is specification and execution of an action that a plan step can call.
type Tool interface {
	// Spec returns the specification of the tool. It's used to resolve a plan
	// step's Action to an executable and to validate step parameters.
	Spec() ToolSpec

	// Run is the execution of the tool. An error return does not abort the
	// plan run; it's classified by the error policy and routed accordingly.
	Run(ctx context.Context, args map[string]any) (map[string]any, error)
}

// ToolSet is a set of tools. A ToolSet groups related tools together and
// manages them as a single unit, e.g. all tools served by one MCP server.
type ToolSet interface {
	// Specs returns the specifications of the tools in the set.
	Specs(ctx context.Context) ([]*ToolSpec, error)

	// Run executes the tool identified by name.
	Run(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// setupTools flattens registered tools and tool sets into a lookup map keyed
// by tool name. Duplicate names are rejected to keep step action resolution
// unambiguous.
func setupTools(ctx context.Context, tools []Tool, toolSets []ToolSet) (map[string]Tool, error) {
	toolMap := make(map[string]Tool, len(tools))

	register := func(tool Tool) error {
		spec := tool.Spec()
		if err := spec.Validate(); err != nil {
			return err
		}
		if _, exists := toolMap[spec.Name]; exists {
			return goerr.Wrap(ErrInvalidTool, "duplicated tool name", goerr.V("name", spec.Name))
		}
		toolMap[spec.Name] = tool
		return nil
	}

	for _, tool := range tools {
		if err := register(tool); err != nil {
			return nil, err
		}
	}

	for _, toolSet := range toolSets {
		specs, err := toolSet.Specs(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get tool set specs")
		}
		for _, spec := range specs {
			if err := register(&toolSetAdapter{toolSet: toolSet, spec: spec}); err != nil {
				return nil, err
			}
		}
	}

	return toolMap, nil
}

// toolSetAdapter exposes a single tool of a ToolSet as a Tool.
type toolSetAdapter struct {
	toolSet ToolSet
	spec    *ToolSpec
}

func (x *toolSetAdapter) Spec() ToolSpec {
	return *x.spec
}

func (x *toolSetAdapter) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return x.toolSet.Run(ctx, x.spec.Name, args)
}
