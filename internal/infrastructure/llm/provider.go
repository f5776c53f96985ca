package llm

import (
	"fmt"

	"content-gen-api/internal/config"
	"content-gen-api/internal/workflow/chain"
	workflowport "content-gen-api/internal/workflow/port"
)

// NewOutlineProvider 大纲阶段只走 OpenAI 兼容的 JSON 模式
func NewOutlineProvider(factory *EinoFactory) workflowport.OutlineProvider {
	return chain.NewOutlineChain(factory)
}

// NewContentProvider 按 llm.content_provider 的类型选择正文实现
func NewContentProvider(cfg *config.Config, factory *EinoFactory) (workflowport.ContentProvider, error) {
	name := cfg.LLM.ContentProvider
	providerCfg, ok := cfg.LLM.Provider(name)
	if !ok {
		return nil, fmt.Errorf("content provider %s not found in LLM config", name)
	}
	switch providerCfg.Type {
	case config.ProviderTypeAnthropic:
		return NewAnthropicContentProvider(name, providerCfg), nil
	case config.ProviderTypeOpenAI, "":
		return chain.NewContentChain(factory), nil
	default:
		return nil, fmt.Errorf("content provider %s has unsupported type %s", name, providerCfg.Type)
	}
}
