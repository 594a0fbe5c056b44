// Package lambda runs submitted code on AWS Lambda functions, one per language.
package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/codeforge/gateway/internal/domain"
	domexec "github.com/codeforge/gateway/internal/domain/execution"
)

// invoker is the subset of the Lambda API the runner uses (ISP).
type invoker interface {
	Invoke(ctx context.Context, params *awslambda.InvokeInput, optFns ...func(*awslambda.Options)) (*awslambda.InvokeOutput, error)
	GetFunction(ctx context.Context, params *awslambda.GetFunctionInput, optFns ...func(*awslambda.Options)) (*awslambda.GetFunctionOutput, error)
}

// Config holds Lambda connection settings.
type Config struct {
	Region          string
	Endpoint        string // optional, e.g. a local emulator
	AccessKeyID     string
	SecretAccessKey string
	Functions       map[domexec.Language]string
}

// Runner implements execution.Runner via synchronous Lambda invocations.
type Runner struct {
	client    invoker
	functions map[domexec.Language]string
}

// New creates a runner over an existing client.
func New(client invoker, functions map[domexec.Language]string) *Runner {
	return &Runner{client: client, functions: functions}
}

// NewFromConfig builds the AWS client. Static keys are used when both are set,
// otherwise the default credential chain applies.
func NewFromConfig(ctx context.Context, cfg Config) (*Runner, error) {
	if len(cfg.Functions) == 0 {
		return nil, errors.New("at least one runner function is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awslambda.NewFromConfig(awsCfg, func(o *awslambda.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Functions), nil
}

type request struct {
	Code string `json:"code"`
}

// functionError is the payload Lambda returns for an unhandled runtime failure.
type functionError struct {
	Message string `json:"errorMessage"`
	Type    string `json:"errorType"`
}

// Run invokes the function bound to lang and returns its payload.
func (r *Runner) Run(ctx context.Context, lang domexec.Language, source string) (json.RawMessage, error) {
	name, ok := r.functions[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no runner for %s", domain.ErrUnsupportedLanguage, lang)
	}

	payload, err := json.Marshal(request{Code: source})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	out, err := r.client.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(name),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", domain.ErrRunnerError, name, err)
	}
	if out.FunctionError != nil {
		var fe functionError
		_ = json.Unmarshal(out.Payload, &fe)
		return nil, fmt.Errorf("%w: %s %s: %s", domain.ErrRunnerError, name, aws.ToString(out.FunctionError), fe.Message)
	}
	if !json.Valid(out.Payload) {
		return nil, fmt.Errorf("%w: %s returned malformed payload", domain.ErrRunnerError, name)
	}
	return json.RawMessage(out.Payload), nil
}

// Supports reports whether a function is bound to lang.
func (r *Runner) Supports(lang domexec.Language) bool {
	_, ok := r.functions[lang]
	return ok
}

// HealthCheck verifies every configured function exists.
func (r *Runner) HealthCheck(ctx context.Context) error {
	for lang, name := range r.functions {
		if _, err := r.client.GetFunction(ctx, &awslambda.GetFunctionInput{FunctionName: aws.String(name)}); err != nil {
			return fmt.Errorf("runner %s (%s): %w", lang, name, err)
		}
	}
	return nil
}
