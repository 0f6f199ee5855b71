package model

// EsChunk 定义了存储在 Elasticsearch 中的分块文档结构。
type EsChunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Seq        int64     `json:"seq"` // 插入序号，距离相同时靠前者优先
	Content    string    `json:"content"`
	Vector     []float32 `json:"vector"`
	Model      string    `json:"model_version,omitempty"`
}
