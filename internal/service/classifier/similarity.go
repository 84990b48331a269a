// Package classifier 提供基于词集合 Jaccard 相似度的意图分类
package classifier

import "strings"

// TokenSet 小写、按空白切分后的词集合
type TokenSet map[string]struct{}

// Tokenize 将文本转换为词集合
func Tokenize(text string) TokenSet {
	fields := strings.Fields(strings.ToLower(text))
	set := make(TokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Similarity 两段文本的 Jaccard 相似度，取值 [0,1]
// 两者都没有词时返回 0
func Similarity(a, b string) float64 {
	return jaccard(Tokenize(a), Tokenize(b))
}

func jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
