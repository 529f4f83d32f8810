package gateway

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterEndpointTool returns the MCP tool definition for register_endpoint.
func RegisterEndpointTool() mcp.Tool {
	return mcp.Tool{
		Name:        "register_endpoint",
		Description: "Register a GraphQL endpoint. The server introspects its schema and publishes one MCP tool per query (and, when allowed, mutation) root field. Registering an existing name replaces its tool set atomically.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Unique endpoint name. Letters, digits, underscore and hyphen; must start with a letter.",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "GraphQL HTTP endpoint URL (http or https).",
				},
				"headers": map[string]any{
					"type":        "object",
					"description": "Optional HTTP headers sent with every request to this endpoint, e.g. Authorization.",
				},
				"allowMutations": map[string]any{
					"type":        "boolean",
					"description": "Generate tools for mutation root fields as well. Defaults to false.",
				},
				"toolPrefix": map[string]any{
					"type":        "string",
					"description": "Optional prefix for generated tool names, useful when multiple endpoints share field names.",
				},
			},
			"required": []string{"name", "url"},
		},
	}
}

// UnregisterEndpointTool returns the MCP tool definition for unregister_endpoint.
func UnregisterEndpointTool() mcp.Tool {
	return mcp.Tool{
		Name:        "unregister_endpoint",
		Description: "Remove a registered GraphQL endpoint and all of its generated tools.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name of the endpoint to remove.",
				},
			},
			"required": []string{"name"},
		},
	}
}

// RefreshEndpointTool returns the MCP tool definition for refresh_endpoint_tools.
func RefreshEndpointTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refresh_endpoint_tools",
		Description: "Re-introspect a registered endpoint and rebuild its generated tools. Use after the remote schema changes.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name of the endpoint to refresh.",
				},
			},
			"required": []string{"name"},
		},
	}
}

// ListDynamicToolsTool returns the MCP tool definition for list_dynamic_tools.
func ListDynamicToolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_dynamic_tools",
		Description: "List the generated GraphQL operation tools, optionally filtered to one endpoint.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"endpoint": map[string]any{
					"type":        "string",
					"description": "Restrict the listing to this endpoint name.",
				},
			},
			"required": []string{},
		},
	}
}

// EndpointStatsTool returns the MCP tool definition for get_endpoint_stats.
func EndpointStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_endpoint_stats",
		Description: "Return access statistics for one registered endpoint, or for all endpoints when no name is given.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Endpoint name. Omit to list stats for every endpoint.",
				},
			},
			"required": []string{},
		},
	}
}

// IntrospectSchemaTool returns the MCP tool definition for introspect_schema.
func IntrospectSchemaTool() mcp.Tool {
	return mcp.Tool{
		Name:        "introspect_schema",
		Description: "Describe the compiled schema of a registered endpoint from the server-side cache, without hitting the endpoint again. Returns the root type names and every named type with its fields, arguments, enum values and possible types.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name of the registered endpoint.",
				},
				"typeName": map[string]any{
					"type":        "string",
					"description": "Restrict the output to this single type.",
				},
			},
			"required": []string{"name"},
		},
	}
}

// ExecuteBatchTool returns the MCP tool definition for execute_batch_operations.
func ExecuteBatchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "execute_batch_operations",
		Description: "Execute multiple GraphQL operations across registered endpoints in one call. Sequential mode supports result chaining: a later query may embed {result.N} or {result.N.data} to splice in the JSON data of operation N.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operations": map[string]any{
					"type":        "array",
					"description": "Operations to execute, in submission order.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"endpoint": map[string]any{
								"type":        "string",
								"description": "Registered endpoint name to execute against.",
							},
							"query": map[string]any{
								"type":        "string",
								"description": "GraphQL operation string.",
							},
							"variables": map[string]any{
								"type":        "object",
								"description": "GraphQL variables for this operation.",
							},
							"name": map[string]any{
								"type":        "string",
								"description": "Optional label echoed in the result. Defaults to operation_<index>.",
							},
						},
						"required": []string{"endpoint", "query"},
					},
				},
				"executionMode": map[string]any{
					"type":        "string",
					"description": "\"parallel\" (default) or \"sequential\". Chaining requires sequential.",
					"enum":        []string{"parallel", "sequential"},
				},
				"continueOnError": map[string]any{
					"type":        "boolean",
					"description": "Keep executing after a failure. Defaults to true.",
				},
				"timeoutSeconds": map[string]any{
					"type":        "integer",
					"description": "Per-operation timeout in seconds. Defaults to the configured batch timeout.",
				},
			},
			"required": []string{"operations"},
		},
	}
}
