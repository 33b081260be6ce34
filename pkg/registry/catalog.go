package registry

import "github.com/ai-council/councild/pkg/config"

// Catalog returns the full model catalog with pricing, latency, and
// reliability profiles. Availability is decided separately, by credential
// presence and deployment mode.
func Catalog() []*Model {
	return []*Model{
		{
			ID:       "groq-llama3-70b",
			Provider: "groq",
			Name:     "llama3-70b-8192",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch, config.TaskCodeGeneration,
			},
			InputTokenCost:    0.00000059,
			OutputTokenCost:   0.00000079,
			AvgLatencySeconds: 0.5,
			MaxContext:        8192,
			Reliability:       0.95,
		},
		{
			ID:       "groq-mixtral-8x7b",
			Provider: "groq",
			Name:     "mixtral-8x7b-32768",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskCreative,
			},
			InputTokenCost:    0.00000027,
			OutputTokenCost:   0.00000027,
			AvgLatencySeconds: 0.4,
			MaxContext:        32768,
			Reliability:       0.93,
		},
		{
			ID:       "together-mixtral-8x7b",
			Provider: "together",
			Name:     "mistralai/Mixtral-8x7B-Instruct-v0.1",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskCodeGeneration,
			},
			InputTokenCost:    0.0000006,
			OutputTokenCost:   0.0000006,
			AvgLatencySeconds: 1.2,
			MaxContext:        32768,
			Reliability:       0.92,
		},
		{
			ID:       "together-llama2-70b",
			Provider: "together",
			Name:     "togethercomputer/llama-2-70b-chat",
			Capabilities: []config.TaskType{
				config.TaskResearch, config.TaskCreative, config.TaskReasoning,
			},
			InputTokenCost:    0.0000009,
			OutputTokenCost:   0.0000009,
			AvgLatencySeconds: 1.5,
			MaxContext:        4096,
			Reliability:       0.90,
		},
		{
			ID:       "together-nous-hermes-2-yi-34b",
			Provider: "together",
			Name:     "NousResearch/Nous-Hermes-2-Yi-34B",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
			},
			InputTokenCost:    0.0000008,
			OutputTokenCost:   0.0000008,
			AvgLatencySeconds: 1.3,
			MaxContext:        4096,
			Reliability:       0.91,
		},
		{
			ID:       "openrouter-gpt-3.5-turbo",
			Provider: "openrouter",
			Name:     "openai/gpt-3.5-turbo",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
			},
			InputTokenCost:    0.0000005,
			OutputTokenCost:   0.0000015,
			AvgLatencySeconds: 1.5,
			MaxContext:        16385,
			Reliability:       0.94,
		},
		{
			ID:       "openrouter-claude-instant-1",
			Provider: "openrouter",
			Name:     "anthropic/claude-instant-1",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCreative, config.TaskFactCheck,
			},
			InputTokenCost:    0.00000163,
			OutputTokenCost:   0.00000551,
			AvgLatencySeconds: 1.2,
			MaxContext:        100000,
			Reliability:       0.95,
		},
		{
			ID:       "openrouter-llama-2-70b-chat",
			Provider: "openrouter",
			Name:     "meta-llama/llama-2-70b-chat",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch, config.TaskCreative,
			},
			InputTokenCost:    0.0000007,
			OutputTokenCost:   0.0000009,
			AvgLatencySeconds: 2.0,
			MaxContext:        4096,
			Reliability:       0.90,
		},
		{
			ID:       "openrouter-palm-2-chat-bison",
			Provider: "openrouter",
			Name:     "google/palm-2-chat-bison",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCreative, config.TaskFactCheck,
			},
			InputTokenCost:    0.00000025,
			OutputTokenCost:   0.0000005,
			AvgLatencySeconds: 1.8,
			MaxContext:        8192,
			Reliability:       0.91,
		},
		{
			ID:       "openrouter-claude-3-sonnet",
			Provider: "openrouter",
			Name:     "anthropic/claude-3-sonnet",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskFactCheck,
				config.TaskVerification,
			},
			InputTokenCost:    0.000003,
			OutputTokenCost:   0.000015,
			AvgLatencySeconds: 2.0,
			MaxContext:        200000,
			Reliability:       0.98,
		},
		{
			ID:       "openrouter-gpt4-turbo",
			Provider: "openrouter",
			Name:     "openai/gpt-4-turbo",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskCodeGeneration,
				config.TaskDebugging, config.TaskVerification,
			},
			InputTokenCost:    0.00001,
			OutputTokenCost:   0.00003,
			AvgLatencySeconds: 3.0,
			MaxContext:        128000,
			Reliability:       0.97,
		},
		{
			ID:       "huggingface-mistral-7b",
			Provider: "huggingface",
			Name:     "mistralai/Mistral-7B-Instruct-v0.2",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskCreative,
			},
			AvgLatencySeconds: 2.5,
			MaxContext:        32768,
			Reliability:       0.85,
		},
		{
			ID:       "huggingface-llama2-7b",
			Provider: "huggingface",
			Name:     "meta-llama/Llama-2-7b-chat-hf",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch, config.TaskCreative,
			},
			AvgLatencySeconds: 3.0,
			MaxContext:        4096,
			Reliability:       0.83,
		},
		{
			ID:       "huggingface-flan-t5-xxl",
			Provider: "huggingface",
			Name:     "google/flan-t5-xxl",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskFactCheck,
			},
			AvgLatencySeconds: 2.0,
			MaxContext:        512,
			Reliability:       0.82,
		},
		{
			ID:       "ollama-llama2-7b",
			Provider: "ollama",
			Name:     "llama2",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch, config.TaskCreative,
			},
			// Latency depends on hardware; this is the CPU figure.
			AvgLatencySeconds: 3.0,
			MaxContext:        4096,
			Reliability:       0.85,
			LocalOnly:         true,
		},
		{
			ID:       "ollama-mistral-7b",
			Provider: "ollama",
			Name:     "mistral",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskCodeGeneration,
			},
			AvgLatencySeconds: 2.5,
			MaxContext:        8192,
			Reliability:       0.87,
			LocalOnly:         true,
		},
		{
			ID:       "ollama-codellama-7b",
			Provider: "ollama",
			Name:     "codellama",
			Capabilities: []config.TaskType{
				config.TaskCodeGeneration, config.TaskDebugging,
			},
			AvgLatencySeconds: 3.5,
			MaxContext:        4096,
			Reliability:       0.83,
			LocalOnly:         true,
		},
		{
			ID:       "ollama-phi-2.7b",
			Provider: "ollama",
			Name:     "phi",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskCreative,
			},
			AvgLatencySeconds: 1.5,
			MaxContext:        2048,
			Reliability:       0.80,
			LocalOnly:         true,
		},
		{
			ID:       "gemini-pro",
			Provider: "gemini",
			Name:     "gemini-pro",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCreative, config.TaskFactCheck,
			},
			// Free tier, no billing required.
			AvgLatencySeconds: 2.0,
			MaxContext:        32768,
			Reliability:       0.92,
		},
		{
			ID:       "gemini-pro-vision",
			Provider: "gemini",
			Name:     "gemini-pro-vision",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch, config.TaskCreative,
			},
			AvgLatencySeconds: 2.5,
			MaxContext:        16384,
			Reliability:       0.90,
		},
		{
			ID:       "openai-gpt-3.5-turbo",
			Provider: "openai",
			Name:     "gpt-3.5-turbo",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
			},
			InputTokenCost:    0.0000005,
			OutputTokenCost:   0.0000015,
			AvgLatencySeconds: 1.0,
			MaxContext:        16385,
			Reliability:       0.94,
		},
		{
			ID:       "openai-gpt-4",
			Provider: "openai",
			Name:     "gpt-4",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
				config.TaskFactCheck, config.TaskDebugging,
				config.TaskVerification,
			},
			InputTokenCost:    0.00003,
			OutputTokenCost:   0.00006,
			AvgLatencySeconds: 3.0,
			MaxContext:        8192,
			Reliability:       0.98,
		},
		{
			ID:       "openai-gpt-4-turbo-preview",
			Provider: "openai",
			Name:     "gpt-4-turbo-preview",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
				config.TaskFactCheck, config.TaskDebugging,
				config.TaskVerification,
			},
			InputTokenCost:    0.00001,
			OutputTokenCost:   0.00003,
			AvgLatencySeconds: 2.5,
			MaxContext:        128000,
			Reliability:       0.97,
		},
		{
			ID:       "qwen-turbo",
			Provider: "qwen",
			Name:     "qwen-turbo",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch, config.TaskCreative,
			},
			InputTokenCost:    0.000002,
			OutputTokenCost:   0.000002,
			AvgLatencySeconds: 1.5,
			MaxContext:        8192,
			Reliability:       0.88,
		},
		{
			ID:       "qwen-plus",
			Provider: "qwen",
			Name:     "qwen-plus",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
			},
			InputTokenCost:    0.000004,
			OutputTokenCost:   0.000004,
			AvgLatencySeconds: 2.0,
			MaxContext:        32768,
			Reliability:       0.91,
		},
		{
			ID:       "qwen-max",
			Provider: "qwen",
			Name:     "qwen-max",
			Capabilities: []config.TaskType{
				config.TaskReasoning, config.TaskResearch,
				config.TaskCodeGeneration, config.TaskCreative,
				config.TaskFactCheck, config.TaskVerification,
			},
			InputTokenCost:    0.000012,
			OutputTokenCost:   0.000012,
			AvgLatencySeconds: 2.5,
			MaxContext:        8192,
			Reliability:       0.93,
		},
	}
}
