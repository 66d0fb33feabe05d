package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStatusNotFound 上游返回 404
var ErrStatusNotFound = fmt.Errorf("资源不存在")

// HTTPClient 带超时的 JSON HTTP 客户端
// 对外部数据源的调用必须有上限，不能无限阻塞请求处理。
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient 创建新的HTTP客户端
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetJSON 发送GET请求并解析JSON响应
// 404 返回 ErrStatusNotFound，其余非 200 状态一律视为请求失败。
func (c *HTTPClient) GetJSON(url string, target interface{}) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrStatusNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("请求失败，状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}
	return nil
}
