package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingClient 用特征哈希生成词袋向量，不依赖外部服务。
// 用于离线模式（knowledge.store=memory 且未配置 embedding）与测试。
type HashingClient struct {
	Dims int
}

// NewHashingClient dims<=0 时使用 256 维。
func NewHashingClient(dims int) *HashingClient {
	if dims <= 0 {
		dims = 256
	}
	return &HashingClient{Dims: dims}
}

// CreateEmbeddings 逐条计算，结果与输入顺序一致。
func (h *HashingClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *HashingClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.Dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}
