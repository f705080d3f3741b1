package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// CalculatorArgs is the native Go shape behind the calculator tool's one
// operation; its JSON schema is derived from this struct rather than
// hand-written (SPEC_FULL §11: invopop/jsonschema).
type CalculatorArgs struct {
	Op string  `json:"op" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide,description=arithmetic operation"`
	A  float64 `json:"a" jsonschema:"description=left operand"`
	B  float64 `json:"b" jsonschema:"description=right operand"`
}

// CalculatorServer is an in-process ToolServer requiring no subprocess or
// network hop, alongside the stdio/HTTP/gRPC transports a deployment adds
// for external tool servers. CallTool validates every call's arguments
// against the compiled schema (santhosh-tekuri/jsonschema/v5) before doing
// arithmetic, the pre-dispatch validation SPEC_FULL §11 calls for.
type CalculatorServer struct {
	schema *validator.Schema
	raw    json.RawMessage
}

// NewCalculatorServer reflects CalculatorArgs into a JSON schema once, then
// compiles it so every CallTool invocation validates against the same
// instance.
func NewCalculatorServer() (*CalculatorServer, error) {
	reflector := &jsonschema.Reflector{}
	schemaDoc := reflector.Reflect(&CalculatorArgs{})
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("calculator: marshal schema: %w", err)
	}

	compiler := validator.NewCompiler()
	if err := compiler.AddResource("calculator.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("calculator: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("calculator.json")
	if err != nil {
		return nil, fmt.Errorf("calculator: compile schema: %w", err)
	}
	return &CalculatorServer{schema: compiled, raw: raw}, nil
}

func (c *CalculatorServer) Name() string { return "calculator" }

func (c *CalculatorServer) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	return []ToolDefinition{{
		ServerName:  "calculator",
		ToolName:    "evaluate",
		Description: "Perform one arithmetic operation on two numbers.",
		Schema:      c.raw,
	}}, nil
}

func (c *CalculatorServer) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if name != "evaluate" {
		return "", fmt.Errorf("calculator: unknown tool %q", name)
	}
	if err := c.schema.Validate(args); err != nil {
		return "", fmt.Errorf("calculator: invalid arguments: %w", err)
	}

	op, _ := args["op"].(string)
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)

	switch op {
	case "add":
		return fmt.Sprintf("%g", a+b), nil
	case "subtract":
		return fmt.Sprintf("%g", a-b), nil
	case "multiply":
		return fmt.Sprintf("%g", a*b), nil
	case "divide":
		if b == 0 {
			return "", fmt.Errorf("calculator: division by zero")
		}
		return fmt.Sprintf("%g", a/b), nil
	default:
		return "", fmt.Errorf("calculator: unknown operation %q", op)
	}
}
