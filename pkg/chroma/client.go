package chroma

import (
	"context"
	"fmt"
	"os"
	"strings"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"go.uber.org/zap"
)

const maxDocumentLength = 10000

// KnowledgeBase stores support articles in a Chroma collection and answers
// similarity queries for the processing pipeline.
type KnowledgeBase struct {
	client     chroma.Client
	embedFunc  *gemini.GeminiEmbeddingFunction
	collection chroma.Collection
	logger     *zap.Logger
}

func NewKnowledgeBase(cfg *config.Config, logger *zap.Logger) (*KnowledgeBase, error) {
	if cfg.ChromaAPIKey == "" && cfg.ChromaURL == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY or CHROMA_URL is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for knowledge base embeddings")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// The embedding function reads its key from the environment
	if os.Getenv("GEMINI_API_KEY") == "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	client, err := chroma.NewHTTPClient(clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	name := cfg.ChromaCollection
	if name == "" {
		name = "support_kb"
	}
	collection, err := client.GetOrCreateCollection(
		context.Background(),
		name,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	logger.Info("knowledge base ready", zap.String("collection", name))

	return &KnowledgeBase{
		client:     client,
		embedFunc:  embedFunc,
		collection: collection,
		logger:     logger,
	}, nil
}

func clientOptions(cfg *config.Config) []chroma.ClientOption {
	if cfg.ChromaAPIKey == "" {
		// Self-hosted Chroma
		opts := []chroma.ClientOption{chroma.WithBaseURL(cfg.ChromaURL)}
		if cfg.ChromaDatabase != "" && cfg.ChromaTenant != "" {
			opts = append(opts, chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant))
		}
		return opts
	}

	// Chroma Cloud - https://api.trychroma.com:8000/api/v2
	opts := []chroma.ClientOption{
		chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
		chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
	}
	if cfg.ChromaDatabase != "" && cfg.ChromaTenant != "" {
		opts = append(opts, chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant))
	} else if cfg.ChromaTenant != "" {
		opts = append(opts, chroma.WithTenant(cfg.ChromaTenant))
	}
	return opts
}

// Upsert adds or replaces snippets keyed by their ID
func (kb *KnowledgeBase) Upsert(ctx context.Context, snippets ...Snippet) error {
	for _, s := range snippets {
		if err := s.Validate(); err != nil {
			return err
		}

		metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
			"title": s.Title,
			"tags":  strings.Join(s.Tags, ","),
		})
		if err != nil {
			return fmt.Errorf("failed to create metadata: %w", err)
		}

		err = kb.collection.Upsert(
			ctx,
			chroma.WithIDs(chroma.DocumentID(s.ID)),
			chroma.WithMetadatas(metadata),
			chroma.WithTexts(truncate(s.Content, maxDocumentLength)),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert snippet %s: %w", s.ID, err)
		}
	}
	kb.logger.Info("knowledge base snippets upserted", zap.Int("count", len(snippets)))
	return nil
}

// Query returns the topK snippets closest to text, best first.
// Score is 1 - cosine distance.
func (kb *KnowledgeBase) Query(ctx context.Context, text string, topK int) ([]emaildomain.KBSnippet, error) {
	if topK <= 0 {
		topK = 3
	}
	if strings.TrimSpace(text) == "" {
		return []emaildomain.KBSnippet{}, nil
	}

	results, err := kb.collection.Query(
		ctx,
		chroma.WithQueryTexts(truncate(text, maxDocumentLength)),
		chroma.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []emaildomain.KBSnippet{}, nil
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 || len(idGroups[0]) == 0 {
		return []emaildomain.KBSnippet{}, nil
	}
	distanceGroups := results.GetDistancesGroups()
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()

	snippets := make([]emaildomain.KBSnippet, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		snippet := emaildomain.KBSnippet{ID: string(id), Title: string(id)}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			snippet.Score = 1 - float64(distanceGroups[0][i])
		}
		if len(documentGroups) > 0 && i < len(documentGroups[0]) && documentGroups[0][i] != nil {
			snippet.Content = documentGroups[0][i].ContentString()
		}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			if title, ok := metadataGroups[0][i].GetString("title"); ok && title != "" {
				snippet.Title = title
			}
		}
		snippets = append(snippets, snippet)
	}
	return snippets, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Close releases the underlying HTTP client
func (kb *KnowledgeBase) Close() error {
	return kb.client.Close()
}
