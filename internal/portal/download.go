package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotReady 文档转换在重试次数内一直未就绪；单项放弃，不阻塞整批
var ErrNotReady = errors.New("文档转换一直未就绪")

// FetchActivities 拉取一门课的活动列表。
// 传输错误或响应形状不对都会重试；重试耗尽只算该课程失败，调用方自行决定跳过。
func (s *Session) FetchActivities(courseID uint64, courseName string) ([]Activity, error) {
	urlStr := fmt.Sprintf("%s/api/courses/%d/activities", s.opts.BaseURL, courseID)

	var activities []Activity
	err := s.withRetry(courseName+" 的课程活动", func() error {
		res, err := s.client.Get(urlStr)
		if err != nil {
			return fmt.Errorf("请求失败: %w", err)
		}
		defer res.Body.Close()

		var payload struct {
			Activities *[]Activity `json:"activities"`
		}
		if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
			return fmt.Errorf("返回无法解析为 json: %w", err)
		}
		if payload.Activities == nil {
			return errors.New("返回 json 无 activities 字段")
		}
		activities = *payload.Activities
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// DownloadUpload 下载单个课件到 dir。
// preferPDF 时走文档转换链接，并把文件拓展名改写为实际交付的格式；
// 写入先落 .part 再改名，保证去重账本里的 id 都对应完整写入的文件。
func (s *Session) DownloadUpload(dir string, id uint64, name string, preferPDF bool) error {
	downloadURL := fmt.Sprintf("%s/api/uploads/reference/%d/blob", s.opts.BaseURL, id)
	fileName := name

	if preferPDF {
		converted, err := s.pollDocumentURL(id)
		if err != nil {
			return err
		}
		downloadURL = converted
		if ext := urlExt(converted); ext != "" {
			fileName = strings.TrimSuffix(name, path.Ext(name)) + ext
		}
	}

	res, err := s.client.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("下载请求失败: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("下载状态码 %d", res.StatusCode)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	target := filepath.Join(dir, fileName)
	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("写入数据失败: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, target)
}

// pollDocumentURL 轮询转换文档的就绪状态，最多 MaxRetries 次
func (s *Session) pollDocumentURL(id uint64) (string, error) {
	urlStr := fmt.Sprintf("%s/api/uploads/reference/document/%d/url?preview=true", s.opts.BaseURL, id)

	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		res, err := s.client.Get(urlStr)
		if err != nil {
			return "", fmt.Errorf("查询文档转换状态: %w", err)
		}
		var payload struct {
			Status string `json:"status"`
			URL    string `json:"url"`
		}
		decodeErr := json.NewDecoder(res.Body).Decode(&payload)
		res.Body.Close()
		if decodeErr != nil {
			return "", fmt.Errorf("解析文档转换状态: %w", decodeErr)
		}
		if payload.Status == "ready" {
			if payload.URL == "" {
				return "", errors.New("返回 json 无 url 字段")
			}
			return payload.URL, nil
		}
	}
	return "", ErrNotReady
}

// urlExt 取下载链接路径部分的拓展名，忽略 query
func urlExt(downloadURL string) string {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
