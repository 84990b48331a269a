package classifier

import (
	"sort"
	"strings"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/model"
)

// ErrNoTrainingData workspace 没有可用训练数据
var ErrNoTrainingData = apperr.New(apperr.ErrNoTrainingData, "no training data available")

// IntentGroups 按意图分组的样本，保留意图首次出现的顺序
type IntentGroups struct {
	order    []string
	examples map[string][]string
	tokens   map[string][]TokenSet
}

// Group 按意图分组，跳过没有意图标签的样本
func Group(examples []model.TrainingExample) *IntentGroups {
	g := &IntentGroups{
		examples: make(map[string][]string),
		tokens:   make(map[string][]TokenSet),
	}
	for _, ex := range examples {
		intent := strings.TrimSpace(ex.Intent)
		if intent == "" {
			continue
		}
		if _, seen := g.examples[intent]; !seen {
			g.order = append(g.order, intent)
		}
		normalized := strings.ToLower(strings.TrimSpace(ex.Text))
		g.examples[intent] = append(g.examples[intent], normalized)
		g.tokens[intent] = append(g.tokens[intent], Tokenize(normalized))
	}
	return g
}

// Intents 意图列表，按首次出现顺序
func (g *IntentGroups) Intents() []string {
	return append([]string(nil), g.order...)
}

// Examples 某意图下规范化后的样本文本
func (g *IntentGroups) Examples(intent string) []string {
	return append([]string(nil), g.examples[intent]...)
}

// Len 意图数量
func (g *IntentGroups) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Options 分类参数
type Options struct {
	ConfidenceFloor float64
	MaxAlternatives int
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{ConfidenceFloor: 0.1, MaxAlternatives: 3}
}

// Classification 分类结果
type Classification struct {
	Intent       string
	Confidence   float64
	Alternatives []model.Alternative
}

type scored struct {
	intent string
	score  float64
}

// Classify 对文本分类
// 每个意图的得分取其样本相似度的最大值；得分相同时先出现的意图优先
// 置信度不低于 ConfidenceFloor，候选项使用原始得分
func Classify(text string, groups *IntentGroups, opts Options) (*Classification, error) {
	if groups.Len() == 0 {
		return nil, ErrNoTrainingData
	}

	input := Tokenize(text)
	scores := make([]scored, 0, len(groups.order))
	for _, intent := range groups.order {
		best := 0.0
		for _, ex := range groups.tokens[intent] {
			if s := jaccard(input, ex); s > best {
				best = s
			}
		}
		scores = append(scores, scored{intent: intent, score: best})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	top := scores[0]
	confidence := top.score
	if confidence < opts.ConfidenceFloor {
		confidence = opts.ConfidenceFloor
	}

	alts := make([]model.Alternative, 0, opts.MaxAlternatives)
	for _, s := range scores[1:] {
		if len(alts) == opts.MaxAlternatives {
			break
		}
		alts = append(alts, model.Alternative{Intent: s.intent, Confidence: s.score})
	}

	return &Classification{
		Intent:       top.intent,
		Confidence:   confidence,
		Alternatives: alts,
	}, nil
}
