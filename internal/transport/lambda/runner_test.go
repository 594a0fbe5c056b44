package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/codeforge/gateway/internal/domain"
	domexec "github.com/codeforge/gateway/internal/domain/execution"
)

// --- Mocks ---

type mockInvoker struct {
	invokeFn      func(ctx context.Context, in *awslambda.InvokeInput) (*awslambda.InvokeOutput, error)
	getFunctionFn func(ctx context.Context, in *awslambda.GetFunctionInput) (*awslambda.GetFunctionOutput, error)
}

func (m *mockInvoker) Invoke(
	ctx context.Context, in *awslambda.InvokeInput, _ ...func(*awslambda.Options),
) (*awslambda.InvokeOutput, error) {
	if m.invokeFn != nil {
		return m.invokeFn(ctx, in)
	}
	return &awslambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{}`)}, nil
}

func (m *mockInvoker) GetFunction(
	ctx context.Context, in *awslambda.GetFunctionInput, _ ...func(*awslambda.Options),
) (*awslambda.GetFunctionOutput, error) {
	if m.getFunctionFn != nil {
		return m.getFunctionFn(ctx, in)
	}
	return &awslambda.GetFunctionOutput{}, nil
}

var testFunctions = map[domexec.Language]string{
	domexec.Python:     "pycoderunner",
	domexec.JavaScript: "jscoderunner",
}

// --- Tests ---

func TestRun_InvokesLanguageFunction(t *testing.T) {
	m := &mockInvoker{invokeFn: func(_ context.Context, in *awslambda.InvokeInput) (*awslambda.InvokeOutput, error) {
		if aws.ToString(in.FunctionName) != "pycoderunner" {
			t.Errorf("function = %s", aws.ToString(in.FunctionName))
		}
		if in.InvocationType != types.InvocationTypeRequestResponse {
			t.Errorf("invocation type = %s", in.InvocationType)
		}
		var req request
		if err := json.Unmarshal(in.Payload, &req); err != nil || req.Code != "print(1)" {
			t.Errorf("payload = %s", in.Payload)
		}
		return &awslambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"output":"1\n"}`)}, nil
	}}

	raw, err := New(m, testFunctions).Run(context.Background(), domexec.Python, "print(1)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"output":"1\n"}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestRun_InvokeError(t *testing.T) {
	m := &mockInvoker{invokeFn: func(context.Context, *awslambda.InvokeInput) (*awslambda.InvokeOutput, error) {
		return nil, errors.New("throttled")
	}}
	_, err := New(m, testFunctions).Run(context.Background(), domexec.JavaScript, "1")
	if !errors.Is(err, domain.ErrRunnerError) {
		t.Fatalf("expected ErrRunnerError, got %v", err)
	}
}

func TestRun_FunctionError(t *testing.T) {
	m := &mockInvoker{invokeFn: func(context.Context, *awslambda.InvokeInput) (*awslambda.InvokeOutput, error) {
		return &awslambda.InvokeOutput{
			StatusCode:    200,
			FunctionError: aws.String("Unhandled"),
			Payload:       []byte(`{"errorMessage":"Task timed out after 3.00 seconds","errorType":"TimeoutError"}`),
		}, nil
	}}
	_, err := New(m, testFunctions).Run(context.Background(), domexec.Python, "while True: pass")
	if !errors.Is(err, domain.ErrRunnerError) {
		t.Fatalf("expected ErrRunnerError, got %v", err)
	}
}

func TestRun_MalformedPayload(t *testing.T) {
	m := &mockInvoker{invokeFn: func(context.Context, *awslambda.InvokeInput) (*awslambda.InvokeOutput, error) {
		return &awslambda.InvokeOutput{StatusCode: 200, Payload: []byte(`not json`)}, nil
	}}
	_, err := New(m, testFunctions).Run(context.Background(), domexec.Python, "x")
	if !errors.Is(err, domain.ErrRunnerError) {
		t.Fatalf("expected ErrRunnerError, got %v", err)
	}
}

func TestRun_UnboundLanguage(t *testing.T) {
	r := New(&mockInvoker{}, map[domexec.Language]string{domexec.Python: "pycoderunner"})
	_, err := r.Run(context.Background(), domexec.JavaScript, "1")
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestSupports(t *testing.T) {
	r := New(&mockInvoker{}, map[domexec.Language]string{domexec.Python: "pycoderunner"})
	if !r.Supports(domexec.Python) {
		t.Error("python is bound")
	}
	if r.Supports(domexec.JavaScript) {
		t.Error("javascript is not bound")
	}
}

func TestHealthCheck(t *testing.T) {
	m := &mockInvoker{getFunctionFn: func(_ context.Context, in *awslambda.GetFunctionInput) (*awslambda.GetFunctionOutput, error) {
		if aws.ToString(in.FunctionName) == "jscoderunner" {
			return nil, errors.New("ResourceNotFoundException")
		}
		return &awslambda.GetFunctionOutput{}, nil
	}}
	if err := New(m, testFunctions).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for missing function")
	}
}

func TestNewFromConfig_RequiresFunctions(t *testing.T) {
	if _, err := NewFromConfig(context.Background(), Config{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error")
	}
}
