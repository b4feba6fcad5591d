package service

import (
	"context"
	"fmt"

	"biobyia-go/internal/model"
	"biobyia-go/pkg/llm"
	"biobyia-go/pkg/log"
)

// AskOptions tune one question-answering call. Zero values fall back to the
// configured defaults.
type AskOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]any
}

// AskResult carries the retrieval side of an answered question. The answer
// text itself is streamed to the caller's writer.
type AskResult struct {
	Results  []model.QueryResult `json:"results"`
	Articles []string            `json:"articles"`
	Context  string              `json:"context"`
}

// AnswerService answers questions over the ingested corpus with a chat
// model grounded on retrieved chunks.
type AnswerService interface {
	Ask(ctx context.Context, question string, opts AskOptions, writer llm.MessageWriter) (*AskResult, error)
}

type answerService struct {
	queryService QueryService
	llmClient    llm.Client
}

// NewAnswerService creates a new AnswerService instance.
func NewAnswerService(queryService QueryService, llmClient llm.Client) AnswerService {
	return &answerService{
		queryService: queryService,
		llmClient:    llmClient,
	}
}

// Ask retrieves context for the question, streams the model's answer to
// writer and returns the retrieval details.
func (s *answerService) Ask(ctx context.Context, question string, opts AskOptions, writer llm.MessageWriter) (*AskResult, error) {
	log.Infof("[AnswerService] answering question: '%s'", question)

	log.Info("[AnswerService] step 1: retrieving context")
	results, err := s.queryService.Query(ctx, question, opts.TopK, opts.Filters)
	if err != nil {
		return nil, err
	}
	results = s.queryService.FilterByScore(results, opts.MinScore)
	contextBlock := s.queryService.FormatContext(results)
	log.Infof("[AnswerService] step 1: %d chunks kept for the prompt", len(results))

	log.Info("[AnswerService] step 2: streaming chat completion")
	messages := []llm.Message{
		{Role: "system", Content: chatMLSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Instruction: %s\nInput: %s\nPergunta: %s", exportInstruction, contextBlock, question)},
	}
	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, writer); err != nil {
		log.Errorf("[AnswerService] chat completion failed: %v", err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	log.Info("[AnswerService] answer streamed")
	return &AskResult{
		Results:  results,
		Articles: s.queryService.UniqueArticles(results),
		Context:  contextBlock,
	}, nil
}
