package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPClient talks to a running Gevulot MCP server over streamable HTTP
type MCPClient struct {
	serverURL string
	authToken string
	client    *mcp.Client
	session   *mcp.ClientSession
	ctx       context.Context
}

// Tool is a tool definition as listed by the server
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolResult is the outcome of one tool invocation
type ToolResult struct {
	Content  []mcp.Content
	IsError  bool
	Metadata map[string]interface{}
}

// NewMCPClient creates a client for the given server URL
func NewMCPClient(serverURL string) *MCPClient {
	return &MCPClient{
		serverURL: serverURL,
		ctx:       context.Background(),
	}
}

// SetAuthToken sets the Bearer token for authentication
func (c *MCPClient) SetAuthToken(token string) {
	c.authToken = token
}

// authTransport wraps http.RoundTripper to add the auth header
type authTransport struct {
	base  http.RoundTripper
	token string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

// Connect establishes the MCP session
func (c *MCPClient) Connect() error {
	c.client = mcp.NewClient(&mcp.Implementation{
		Name:    "gevulot-test",
		Version: "0.1.0",
	}, nil)

	// No client timeout: chat calls legitimately run for minutes
	httpClient := &http.Client{
		Timeout: 0,
	}
	if c.authToken != "" {
		httpClient.Transport = &authTransport{
			base:  http.DefaultTransport,
			token: c.authToken,
		}
	}

	transport := &mcp.StreamableClientTransport{
		Endpoint:   c.serverURL,
		HTTPClient: httpClient,
	}

	session, err := c.client.Connect(c.ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.session = session
	return nil
}

// ListTools retrieves the tool listing from the server
func (c *MCPClient) ListTools() ([]Tool, error) {
	if c.session == nil {
		return nil, fmt.Errorf("not connected - call Connect() first")
	}

	result, err := c.session.ListTools(c.ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]Tool, len(result.Tools))
	for i, t := range result.Tools {
		tools[i] = Tool{
			Name:        t.Name,
			Description: t.Description,
		}
	}

	return tools, nil
}

// InvokeTool calls the named tool with the given parameters
func (c *MCPClient) InvokeTool(name string, params map[string]interface{}) (*ToolResult, error) {
	if c.session == nil {
		return nil, fmt.Errorf("not connected - call Connect() first")
	}

	result, err := c.session.CallTool(c.ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}

	return &ToolResult{
		Content:  result.Content,
		IsError:  result.IsError,
		Metadata: result.Meta,
	}, nil
}

// Close closes the client session
func (c *MCPClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// GetToolContent extracts the text content from a ToolResult
func (r *ToolResult) GetToolContent() string {
	if r == nil {
		return ""
	}

	var result string
	for _, content := range r.Content {
		if textContent, ok := content.(*mcp.TextContent); ok {
			if result != "" {
				result += "\n"
			}
			result += textContent.Text
		}
	}

	return result
}
