package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/apresai/robodebate/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
	"nova-pro":  "us.amazon.nova-pro-v1:0",
}

// ConverseAPI is the slice of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient calls Amazon Bedrock's Converse API (Nova models by default).
type BedrockClient struct {
	api   ConverseAPI
	model string
}

func NewBedrockClient(ctx context.Context, cfg config.LLMConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return NewBedrockClientWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg.Model), nil
}

// NewBedrockClientWithAPI wires an existing Converse implementation.
func NewBedrockClientWithAPI(api ConverseAPI, model string) *BedrockClient {
	if alias, ok := novaModels[model]; ok {
		model = alias
	}
	if model == "" {
		model = novaModels["nova-lite"]
	}
	return &BedrockClient{api: api, model: model}
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.bedrock")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.model))

	system, rest := splitSystem(req.Messages)

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.model),
		Messages: convertBedrockMessages(rest),
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(clampTemperature(req.Temperature, 1.0))),
		},
	}
	if req.MaxTokens > 0 {
		input.InferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}

	resp, err := c.api.Converse(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "converse failed")
		return "", fmt.Errorf("bedrock converse: %w", err)
	}

	return strings.TrimSpace(extractConverseText(resp)), nil
}

func convertBedrockMessages(msgs []Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: m.Content},
			},
		})
	}
	return out
}

func extractConverseText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
