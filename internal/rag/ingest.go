package rag

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

// ProgressFunc receives cumulative chunk counts after each committed batch.
type ProgressFunc func(created, committed int)

// IngestText chunks, embeds and indexes one document. Work proceeds batch
// by batch so a cancelled context stops issuing new embedding calls while
// everything already written stays committed; the returned result reports
// the exact committed count either way.
func (p *Pipeline) IngestText(ctx context.Context, doc model.Document, collection string, onProgress ProgressFunc) (*model.IngestResult, error) {
	if collection == "" {
		collection = p.cfg.DefaultCollection
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("collection", collection), zap.String("source", doc.Source))
	if strings.TrimSpace(doc.Text) == "" {
		return nil, errs.Invalidf("document text is empty")
	}
	if len(doc.Text) > p.cfg.MaxInputBytes {
		return nil, errs.Invalidf("document size %d exceeds limit %d", len(doc.Text), p.cfg.MaxInputBytes)
	}

	chunks, err := p.chunker.Chunk(doc.Text, p.cfg.ChunkTokens, p.cfg.OverlapTokens)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Source = doc.Source
	}
	result := &model.IngestResult{
		ChunksCreated: len(chunks),
		Collection:    collection,
		Source:        doc.Source,
	}
	if len(chunks) == 0 {
		return nil, errs.Invalidf("document produced no chunks")
	}
	logger.Info("document chunked", zap.Int("chunks", len(chunks)))

	schemaReady := false
	err = p.embedder.EmbedAll(ctx, chunks, func(batch []model.EmbeddedChunk, done int) error {
		if !schemaReady {
			if err := p.store.EnsureSchema(ctx, collection, len(batch[0].Vector)); err != nil {
				return err
			}
			schemaReady = true
		}
		committed, werr := p.store.WriteBatch(ctx, collection, batch)
		result.ChunksCommitted += committed
		if werr != nil {
			logger.Error("write batch failed",
				zap.Int("committed", result.ChunksCommitted), zap.Error(werr))
			return werr
		}
		if onProgress != nil {
			onProgress(result.ChunksCreated, result.ChunksCommitted)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("ingestion cancelled",
				zap.Int("committed", result.ChunksCommitted), zap.Int("created", result.ChunksCreated))
		} else {
			logger.Error("ingestion failed",
				zap.Int("committed", result.ChunksCommitted), zap.Error(err))
		}
		return result, err
	}
	logger.Info("document ingested", zap.Int("committed", result.ChunksCommitted))
	return result, nil
}
