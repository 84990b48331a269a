package model

// Alternative 候选意图
type Alternative struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult 单条文本的预测结果
type PredictionResult struct {
	Text             string        `json:"text"`
	PredictedIntent  string        `json:"predictedIntent"`
	Confidence       float64       `json:"confidence"`
	UncertaintyScore float64       `json:"uncertaintyScore"`
	Alternatives     []Alternative `json:"alternatives"`
	IsUncertain      bool          `json:"isUncertain"`
	WorkspaceID      string        `json:"workspaceId"`
	ModelID          string        `json:"modelId"`
}
