// Package bedrock implements the gateway.Provider interface for AWS Bedrock.
//
// Requests are sent through the InvokeModel API with the JSON payload each
// model family expects: Anthropic Claude models use the messages format with
// tool_use/tool_result content blocks, while Amazon Titan and Meta Llama
// models use their native text-generation formats (and reject tool
// declarations, since those families have no tool calling).
//
// Usage:
//
//	client, err := bedrock.NewClient(gateway.ProviderConfig{
//	    Provider: "bedrock",
//	    Model:    "anthropic.claude-3-haiku-20240307-v1:0",
//	    Extra: map[string]string{
//	        "region": "us-west-2",
//	    },
//	})
//
// Credentials come from the AWS SDK's default chain (environment variables,
// shared config, IAM roles). The adapter itself never sees raw keys, which
// is what keeps the direct gateway variant credential-free at the call site.
package bedrock
