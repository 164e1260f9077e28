package qdrant

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
}

func encodePayload(p domain.PointPayload) map[string]*qdrant.Value {
	chain := make([]*qdrant.Value, len(p.TitleChain))
	for i, title := range p.TitleChain {
		chain[i] = stringValue(title)
	}
	return map[string]*qdrant.Value{
		domain.PayloadDocumentID:   stringValue(p.DocumentID),
		domain.PayloadCollectionID: stringValue(p.CollectionID),
		domain.PayloadChunkIndex:   intValue(int64(p.ChunkIndex)),
		domain.PayloadContent:      stringValue(p.Content),
		domain.PayloadContentHash:  stringValue(p.ContentHash),
		domain.PayloadTitleChain: {
			Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: chain}},
		},
	}
}

func decodePayload(m map[string]*qdrant.Value) domain.PointPayload {
	p := domain.PointPayload{
		DocumentID:   m[domain.PayloadDocumentID].GetStringValue(),
		CollectionID: m[domain.PayloadCollectionID].GetStringValue(),
		ChunkIndex:   int(m[domain.PayloadChunkIndex].GetIntegerValue()),
		Content:      m[domain.PayloadContent].GetStringValue(),
		ContentHash:  m[domain.PayloadContentHash].GetStringValue(),
	}
	for _, v := range m[domain.PayloadTitleChain].GetListValue().GetValues() {
		p.TitleChain = append(p.TitleChain, v.GetStringValue())
	}
	return p
}

// translateFilter turns a search filter into Qdrant must-conditions.
func translateFilter(f *domain.SearchFilter) *qdrant.Filter {
	if f.IsEmpty() {
		return nil
	}
	var must []*qdrant.Condition
	if len(f.DocumentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(domain.PayloadDocumentID, f.DocumentIDs...))
	}
	if f.ChunkIndex != nil {
		must = append(must, qdrant.NewMatchInt(domain.PayloadChunkIndex, int64(*f.ChunkIndex)))
	}
	return &qdrant.Filter{Must: must}
}
