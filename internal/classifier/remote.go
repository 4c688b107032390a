package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RemoteClassifier 远程推理服务客户端
type RemoteClassifier struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// predictRequest 推理请求
type predictRequest struct {
	Features []float64 `json:"features"`
}

// predictResponse 推理响应
type predictResponse struct {
	AlarmStatus int `json:"alarm_status"`
}

// NewRemoteClassifier 创建远程分类器客户端
func NewRemoteClassifier(baseURL, endpoint string, timeout time.Duration, logger *zap.Logger) *RemoteClassifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RemoteClassifier{
		httpClient: client,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// Health 健康检查（启动时调用，失败则拒绝启动分类依赖功能）
func (c *RemoteClassifier) Health(ctx context.Context) error {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/")
	if err != nil {
		return fmt.Errorf("classifier service unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("classifier service unhealthy: status %d", resp.StatusCode())
	}
	return nil
}

// Classify 调用推理服务对特征向量分类
// 单次失败上报为错误，不降级为默认预测
func (c *RemoteClassifier) Classify(ctx context.Context, features []float64) (int, error) {
	var result predictResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(predictRequest{Features: features}).
		SetResult(&result).
		Post(c.endpoint)

	if err != nil {
		return 0, fmt.Errorf("classifier request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode(), resp.String())
	}

	if result.AlarmStatus != 0 && result.AlarmStatus != 1 {
		return 0, fmt.Errorf("classifier returned invalid label: %d", result.AlarmStatus)
	}

	return result.AlarmStatus, nil
}
