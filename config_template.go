package main

const settingsTemplate = `# {{ index .Help "model" }}
# default-model: openai/gpt-4.1
# {{ index .Help "provider" }}
# default-provider: openai
# {{ index .Help "raw" }}
raw: false
# {{ index .Help "quiet" }}
quiet: false
# {{ index .Help "temp" }}
# temp: 1.0
# {{ index .Help "max-tokens" }}
# max-tokens: 1000
# {{ index .Help "timeout" }}
timeout: 2m
# {{ index .Help "http-proxy" }}
# http-proxy: http://localhost:8080
# {{ index .Help "log-level" }}
log-level: info
# {{ index .Help "config-path" }}
# config-path: ~/.config/aihelper/config.json
# {{ index .Help "usage-path" }}
# usage-path: ~/.local/share/aihelper/usage.json
# {{ index .Help "catalog-url" }}
catalog-url: https://openrouter.ai/api/v1/models
# {{ index .Help "catalog-cache-path" }}
# catalog-cache-path: ~/.cache/aihelper/models_cache.json
# {{ index .Help "model-mappings-path" }}
# model-mappings-path: ~/.config/aihelper/model_mappings.json
# {{ index .Help "reports-path" }}
# reports-path: ~/.local/share/aihelper/reports.db
# {{ index .Help "cache-path" }}
# cache-path: ~/.cache/aihelper
# {{ index .Help "logs-path" }}
logs-path: logs
# {{ index .Help "apis" }}
apis:
  openai:
    base-url: https://api.openai.com/v1
    api-key:
    api-key-env: OPENAI_API_KEY
  open_router:
    base-url: https://openrouter.ai/api/v1
    api-key:
    api-key-env: OPENROUTER_API_KEY
  anthropic:
    base-url: https://api.anthropic.com/
    api-key:
    api-key-env: ANTHROPIC_API_KEY
  google:
    api-key:
    api-key-env: GOOGLE_API_KEY
    # thinking-budget: 1024
  cohere:
    api-key:
    api-key-env: COHERE_API_KEY
  ollama:
    base-url: http://localhost:11434
# {{ index .Help "mcp-servers" }}
mcp-servers:
  # time:
  #   command: uvx mcp-server-time
# {{ index .Help "mcp-disable" }}
mcp-disable: []
# {{ index .Help "mcp-timeout" }}
mcp-timeout: 15s
`
