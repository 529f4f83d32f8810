package schema

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
	"gqlmcpd/internal/infra/transport"
)

const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      ...FullType
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args {
      ...InputValue
    }
    type {
      ...TypeRef
    }
    isDeprecated
    deprecationReason
  }
  inputFields {
    ...InputValue
  }
  interfaces {
    ...TypeRef
  }
  enumValues(includeDeprecated: true) {
    name
    description
  }
  possibleTypes {
    ...TypeRef
  }
}

fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}`

// SchemaPayload is the raw __schema object returned by introspection.
type SchemaPayload struct {
	QueryType        *RootTypeRef        `json:"queryType"`
	MutationType     *RootTypeRef        `json:"mutationType"`
	SubscriptionType *RootTypeRef        `json:"subscriptionType"`
	Types            []IntrospectionType `json:"types"`
}

// RootTypeRef names a schema root type.
type RootTypeRef struct {
	Name string `json:"name"`
}

// IntrospectionType is one entry of __schema.types.
type IntrospectionType struct {
	Kind          string                `json:"kind"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Fields        []IntrospectionField  `json:"fields"`
	InputFields   []IntrospectionInput  `json:"inputFields"`
	EnumValues    []IntrospectionEnum   `json:"enumValues"`
	PossibleTypes []IntrospectionRef    `json:"possibleTypes"`
	Interfaces    []IntrospectionRef    `json:"interfaces"`
}

type IntrospectionField struct {
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Args              []IntrospectionInput `json:"args"`
	Type              *IntrospectionRef    `json:"type"`
	IsDeprecated      bool                 `json:"isDeprecated"`
	DeprecationReason string               `json:"deprecationReason"`
}

type IntrospectionInput struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Type         *IntrospectionRef `json:"type"`
	DefaultValue *string           `json:"defaultValue"`
}

type IntrospectionEnum struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// IntrospectionRef is a possibly wrapped type reference.
type IntrospectionRef struct {
	Kind   string            `json:"kind"`
	Name   string            `json:"name"`
	OfType *IntrospectionRef `json:"ofType"`
}

// Introspector fetches raw schema data from endpoints. It performs no
// retries; those belong to the transport's caller.
type Introspector struct {
	client  *transport.Client
	logger  *zap.Logger
	timeout time.Duration
}

type IntrospectorOptions struct {
	Client  *transport.Client
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewIntrospector(opts IntrospectorOptions) *Introspector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultRequestTimeoutSeconds * time.Second
	}
	return &Introspector{
		client:  opts.Client,
		logger:  logger.Named("introspector"),
		timeout: timeout,
	}
}

// Fetch issues the standard introspection query against the endpoint.
func (i *Introspector) Fetch(ctx context.Context, endpoint domain.EndpointInfo) (*SchemaPayload, error) {
	const op = "schema.Fetch"

	result, err := i.client.Execute(ctx, endpoint.URL, endpoint.Headers, transport.Request{
		Query:         introspectionQuery,
		OperationName: "IntrospectionQuery",
	}, i.timeout)
	if err != nil {
		return nil, domain.Wrap(domain.CodeConnection, op, err)
	}

	if len(result.Errors) > 0 {
		i.logger.Warn("introspection returned errors",
			zap.String("endpoint", endpoint.Name),
			zap.String("errors", result.ErrorText()))
		return nil, domain.E(domain.CodeGraphQL, op, result.ErrorText(), nil)
	}

	var decoded struct {
		Schema *SchemaPayload `json:"__schema"`
	}
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &decoded); err != nil {
			return nil, domain.E(domain.CodeParse, op, "decode introspection data", err)
		}
	}
	if decoded.Schema == nil {
		return nil, domain.E(domain.CodeSchema, op,
			"endpoint returned no __schema data; introspection may be disabled or require auth",
			domain.ErrIntrospectionUnsupported)
	}

	i.logger.Debug("introspection fetched",
		zap.String("endpoint", endpoint.Name),
		zap.Int("types", len(decoded.Schema.Types)))

	return decoded.Schema, nil
}
