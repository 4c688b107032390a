package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// LocalModel 本地逻辑回归模型（权重从离线训练导出的 JSON 文件加载）
type LocalModel struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	// Threshold 判定为风险的概率阈值，默认 0.5
	Threshold float64 `json:"threshold"`
}

// LoadLocalModel 从权重文件加载模型
func LoadLocalModel(path string) (*LocalModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}

	var model LocalModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	if len(model.Weights) == 0 {
		return nil, fmt.Errorf("model file %s has no weights", path)
	}
	if len(model.FeatureNames) != len(model.Weights) {
		return nil, fmt.Errorf("model file %s: feature count %d does not match weight count %d",
			path, len(model.FeatureNames), len(model.Weights))
	}
	if model.Threshold == 0 {
		model.Threshold = 0.5
	}

	return &model, nil
}

// Classify 对特征向量分类（0=安全，1=风险）
func (m *LocalModel) Classify(ctx context.Context, features []float64) (int, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("feature vector length %d does not match model dimension %d",
			len(features), len(m.Weights))
	}

	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}

	p := 1.0 / (1.0 + math.Exp(-z))
	if p >= m.Threshold {
		return 1, nil
	}
	return 0, nil
}
