package cogito

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient exposes the tools of an MCP server as a ToolSet, so plan steps
// can invoke them through the step executor. The connection is established
// lazily on first use.
type MCPClient struct {
	// For local MCP server
	path    string
	args    []string
	envVars []string

	// For remote MCP server
	baseURL string
	headers map[string]string

	client     *client.Client
	initResult *mcp.InitializeResult

	initMutex sync.Mutex
}

// MCPStdioOption is the option for an MCP client speaking to a local
// executable server via stdio.
type MCPStdioOption func(*MCPClient)

// WithEnvVars appends environment variables passed to the MCP server process.
func WithEnvVars(envVars []string) MCPStdioOption {
	return func(m *MCPClient) {
		m.envVars = append(m.envVars, envVars...)
	}
}

// NewMCPStdio creates an MCP client for a local executable server.
func NewMCPStdio(path string, args []string, options ...MCPStdioOption) *MCPClient {
	mcpClient := &MCPClient{
		path: path,
		args: args,
	}
	for _, opt := range options {
		opt(mcpClient)
	}
	return mcpClient
}

// MCPSSEOption is the option for an MCP client speaking to a remote server
// via HTTP SSE.
type MCPSSEOption func(*MCPClient)

// WithHeaders replaces the HTTP headers sent to the MCP server.
func WithHeaders(headers map[string]string) MCPSSEOption {
	return func(m *MCPClient) {
		m.headers = headers
	}
}

// NewMCPSSE creates an MCP client for a remote server via HTTP SSE.
func NewMCPSSE(baseURL string, options ...MCPSSEOption) *MCPClient {
	mcpClient := &MCPClient{
		baseURL: baseURL,
	}
	for _, opt := range options {
		opt(mcpClient)
	}
	return mcpClient
}

func (c *MCPClient) start(ctx context.Context) error {
	c.initMutex.Lock()
	defer c.initMutex.Unlock()

	if c.initResult != nil {
		return nil
	}

	var tp transport.Interface
	if c.path != "" {
		tp = transport.NewStdio(c.path, c.envVars, c.args...)
	}
	if c.baseURL != "" {
		sse, err := transport.NewSSE(c.baseURL, transport.WithHeaders(c.headers))
		if err != nil {
			return goerr.Wrap(err, "failed to create SSE transport")
		}
		tp = sse
	}
	if tp == nil {
		return goerr.New("no transport")
	}

	c.client = client.NewClient(tp)
	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP client")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "cogito",
		Version: "0.0.1",
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp

	LoggerFromContext(ctx).Debug("MCP client initialized",
		"server", c.initResult.ServerInfo.Name)
	return nil
}

// Specs implements ToolSet.
func (c *MCPClient) Specs(ctx context.Context) ([]*ToolSpec, error) {
	if err := c.start(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}

	specs := make([]*ToolSpec, 0, len(resp.Tools))
	for _, tool := range resp.Tools {
		parameters, err := inputSchemaToParameters(tool.InputSchema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert tool input schema",
				goerr.V("tool_name", tool.Name))
		}
		specs = append(specs, &ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  parameters,
			Required:    tool.InputSchema.Required,
		})
	}
	return specs, nil
}

// Run implements ToolSet.
func (c *MCPClient) Run(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if err := c.start(ctx); err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool", goerr.V("tool_name", name))
	}

	return mcpContentToMap(resp.Content), nil
}

// Close shuts down the connection to the MCP server.
func (c *MCPClient) Close() error {
	c.initMutex.Lock()
	defer c.initMutex.Unlock()

	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

func valueOrEmpty[T any](v any) T {
	var empty T
	if v == nil {
		return empty
	}
	if v, ok := v.(T); ok {
		return v
	}
	return empty
}

func stringSlice(v any) []string {
	raw := valueOrEmpty[[]any](v)
	if len(raw) == 0 {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

func inputSchemaToParameters(inputSchema mcp.ToolInputSchema) (map[string]*Parameter, error) {
	parameters := map[string]*Parameter{}

	for name, property := range inputSchema.Properties {
		prop, ok := property.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidParameter, "invalid property",
				goerr.V("property_name", name))
		}

		parameter, err := propertyToParameter(prop)
		if err != nil {
			return nil, err
		}
		parameters[name] = parameter
	}

	return parameters, nil
}

func propertyToParameter(prop map[string]any) (*Parameter, error) {
	var properties map[string]*Parameter
	var items *Parameter
	propType := valueOrEmpty[string](prop["type"])

	if propType == "object" {
		properties = map[string]*Parameter{}
		for name, nested := range valueOrEmpty[map[string]any](prop["properties"]) {
			nestedProp, ok := nested.(map[string]any)
			if !ok {
				return nil, goerr.Wrap(ErrInvalidParameter, "invalid nested property",
					goerr.V("property_name", name))
			}
			parameter, err := propertyToParameter(nestedProp)
			if err != nil {
				return nil, err
			}
			properties[name] = parameter
		}
	}

	if propType == "array" {
		itemProp, ok := prop["items"].(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidParameter, "array property without items")
		}
		v, err := propertyToParameter(itemProp)
		if err != nil {
			return nil, err
		}
		items = v
	}

	return &Parameter{
		Type:        ParameterType(propType),
		Title:       valueOrEmpty[string](prop["title"]),
		Description: valueOrEmpty[string](prop["description"]),
		Required:    stringSlice(prop["required"]),
		Enum:        stringSlice(prop["enum"]),
		Properties:  properties,
		Items:       items,
	}, nil
}

func mcpContentToMap(contents []mcp.Content) map[string]any {
	for _, content := range contents {
		txt, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(txt.Text), &v); err == nil {
			if mapData, ok := v.(map[string]any); ok {
				return mapData
			}
			return map[string]any{"result": v}
		}
		return map[string]any{"result": txt.Text}
	}

	return map[string]any{}
}
