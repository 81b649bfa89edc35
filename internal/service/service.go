package service

import (
	"context"

	"go.uber.org/zap"

	"docchat/internal/config"
	"docchat/internal/domain"
)

// Service wires the full pipeline: documents are loaded, chunked,
// embedded and upserted during ingestion; questions are embedded,
// matched against the store and answered through the generator.
type Service struct {
	loader     domain.Loader
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	generator  domain.Generator
	summarizer domain.Summarizer
	logger     *zap.Logger

	topK             int
	ingestMode       string
	summarySentences int
}

// Options carries the tunables the service reads from configuration.
type Options struct {
	TopK             int
	IngestMode       string
	SummarySentences int
}

// New assembles a service from its collaborators.
func New(loader domain.Loader, chunker domain.Chunker, embedder domain.Embedder,
	store domain.VectorStore, generator domain.Generator, summarizer domain.Summarizer,
	opts Options, logger *zap.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.IngestMode == "" {
		opts.IngestMode = config.IngestReplace
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = 5
	}
	return &Service{
		loader:           loader,
		chunker:          chunker,
		embedder:         embedder,
		store:            store,
		generator:        generator,
		summarizer:       summarizer,
		logger:           logger,
		topK:             opts.TopK,
		ingestMode:       opts.IngestMode,
		summarySentences: opts.SummarySentences,
	}
}

// IngestResult reports what an ingestion run produced.
type IngestResult struct {
	Documents int
	Chunks    int
	Summary   string
}

// Ingest loads every supported document under docsDir, splits them into
// chunks, embeds the chunks and writes them to the vector store. In
// replace mode the store is cleared first so stale chunks from removed
// documents cannot surface in answers.
func (s *Service) Ingest(ctx context.Context, docsDir string) (IngestResult, error) {
	var res IngestResult

	docs, err := s.loader.Load(docsDir)
	if err != nil {
		return res, err
	}
	res.Documents = len(docs)

	var chunks []domain.Chunk
	var texts []string
	var corpus []string
	for _, doc := range docs {
		docChunks, err := s.chunker.Chunk(doc)
		if err != nil {
			return res, err
		}
		chunks = append(chunks, docChunks...)
		for _, ch := range docChunks {
			texts = append(texts, ch.Text)
		}
		corpus = append(corpus, doc.Content)
	}
	res.Chunks = len(chunks)
	s.logger.Info("documents chunked",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)))

	if err := s.embedder.Prepare(ctx, texts); err != nil {
		return res, err
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return res, err
	}

	// The embedder's dimension is only known after the first call for
	// remote models, so Init runs after embedding.
	if err := s.store.Init(s.embedder.Dimension()); err != nil {
		return res, err
	}
	if s.ingestMode == config.IngestReplace {
		if err := s.store.Clear(); err != nil {
			return res, err
		}
	}
	if err := s.store.Upsert(chunks, vectors); err != nil {
		return res, err
	}
	s.logger.Info("vector store updated",
		zap.String("mode", s.ingestMode),
		zap.Int("stored", s.store.Count()))

	if s.summarizer != nil {
		var all []byte
		for _, content := range corpus {
			all = append(all, '\n')
			all = append(all, content...)
		}
		summary, err := s.summarizer.Summarize(string(all), s.summarySentences)
		if err != nil {
			s.logger.Warn("summary generation failed", zap.Error(err))
		} else {
			res.Summary = summary
		}
	}
	return res, nil
}

// Retrieve embeds the question and returns the topK closest chunks,
// ordered by ascending cosine distance.
func (s *Service) Retrieve(ctx context.Context, question string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.topK
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.store.Search(vec, topK)
}

// Ask retrieves context for the question and generates a grounded
// answer. When retrieval returns nothing the generator is not called
// and a fixed no-information answer is returned.
func (s *Service) Ask(ctx context.Context, question string) (domain.Answer, error) {
	results, err := s.Retrieve(ctx, question, s.topK)
	if err != nil {
		return domain.Answer{}, err
	}
	if len(results) == 0 {
		return domain.Answer{Text: noInformationAnswer}, nil
	}

	prompt := buildPrompt(results, question)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: text, Sources: citations(results)}, nil
}
