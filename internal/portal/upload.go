package portal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// uploadSlot 创建上传位的响应
type uploadSlot struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	UploadURL string `json:"upload_url"`
}

// UploadFile 把本地文件上传到个人资料库，返回 upload id。
// 远端声明不支持的文件类型是终态错误；PUT 非 2xx 同样终态，状态码与响应体一并上抛。
func (s *Session) UploadFile(filePath string) (uint64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("读取文件信息: %w", err)
	}
	fileName := filepath.Base(filePath)

	payload := map[string]any{
		"embed_material_type":  "",
		"is_marked_attachment": false,
		"is_scorm":             false,
		"is_wmpkg":             false,
		"name":                 fileName,
		"parent_id":            0,
		"parent_type":          nil,
		"size":                 info.Size(),
		"source":               "",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	var slot uploadSlot
	err = s.withRetry("创建上传位", func() error {
		res, err := s.client.Post(s.opts.BaseURL+"/api/uploads", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("上传请求失败: %w", err)
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("读取上传响应: %w", err)
		}
		var probe struct {
			Errors json.RawMessage `json:"errors"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("上传响应无法解析为 json: %w", err)
		}
		if len(probe.Errors) > 0 && string(probe.Errors) != "null" {
			// 远端明确拒绝该文件类型，重试不会有不同结果
			return terminalf("门户不支持 %s 的文件类型", fileName)
		}
		if err := json.Unmarshal(raw, &slot); err != nil {
			return fmt.Errorf("解析上传位: %w", err)
		}
		if slot.UploadURL == "" {
			return errors.New("上传响应缺少 upload_url")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if slot.Name == "" {
		slot.Name = fileName
	}
	if err := s.putFile(slot.UploadURL, filePath, slot.Name); err != nil {
		return 0, err
	}
	return slot.ID, nil
}

// putFile 把文件内容作为单个 multipart part PUT 到上传位
func (s *Session) putFile(uploadURL, filePath, fileName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("打开文件: %w", err)
	}
	defer f.Close()

	// 上传位要求 Content-Length，内存构造 multipart body 而非 chunked 管道
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("读取文件内容: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, uploadURL, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("上传文件内容: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		text, _ := io.ReadAll(res.Body)
		return terminalf("上传状态码 %d，响应内容: %s", res.StatusCode, text)
	}
	return nil
}

// HandIn 把资料库里的文件附到作业提交上。
// 已解析响应中的 errors 数组是终态错误：重复提交一份已被拒的作业没有意义。
func (s *Session) HandIn(homeworkID, uploadID uint64, comment string) error {
	if comment != "" {
		comment = fmt.Sprintf("<p>%s<br></p>", comment)
	}
	payload := map[string]any{
		"comment":              comment,
		"is_draft":             false,
		"mode":                 "normal",
		"other_resources":      []any{},
		"slides":               []any{},
		"uploads":              []uint64{uploadID},
		"uploads_in_rich_text": []any{},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	urlStr := fmt.Sprintf("%s/api/course/activities/%d/submissions", s.opts.BaseURL, homeworkID)

	return s.withRetry("上交作业", func() error {
		res, err := s.client.Post(urlStr, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("提交请求失败: %w", err)
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("读取提交响应: %w", err)
		}
		var probe struct {
			Errors json.RawMessage `json:"errors"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("提交响应无法解析为 json: %w", err)
		}
		if len(probe.Errors) > 0 && string(probe.Errors) != "null" {
			return terminalf("上交作业被拒绝: %s", probe.Errors)
		}
		return nil
	})
}

// FetchHomeworkList 并发拉取各课程进行中的作业。
// 与课件发现同构：每门课一个 worker，单课失败只记日志不影响其它课程。
func (s *Session) FetchHomeworkList(courses []CourseData) []Homework {
	var (
		mu  sync.Mutex
		all []Homework
		wg  sync.WaitGroup
	)

	for _, course := range courses {
		wg.Add(1)
		go func(course CourseData) {
			defer wg.Done()

			urlStr := fmt.Sprintf(
				"%s/api/courses/%d/homework-activities?page=1&page_size=100&reloadPage=false",
				s.opts.BaseURL, course.ID,
			)
			var local []Homework
			err := s.withRetry(course.Name+" 的作业列表", func() error {
				res, err := s.client.Get(urlStr)
				if err != nil {
					return fmt.Errorf("请求失败: %w", err)
				}
				defer res.Body.Close()

				var payload struct {
					HomeworkActivities *[]struct {
						ID           uint64 `json:"id"`
						Title        string `json:"title"`
						Deadline     string `json:"deadline"`
						Submitted    bool   `json:"submitted"`
						IsInProgress bool   `json:"is_in_progress"`
					} `json:"homework_activities"`
				}
				if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
					return fmt.Errorf("返回无法解析为 json: %w", err)
				}
				if payload.HomeworkActivities == nil {
					return errors.New("返回 json 无 homework_activities 字段")
				}

				local = local[:0]
				for _, hw := range *payload.HomeworkActivities {
					if !hw.IsInProgress {
						continue
					}
					local = append(local, Homework{
						ID:         hw.ID,
						CourseName: course.Name,
						Title:      hw.Title,
						Deadline:   hw.Deadline,
						Submitted:  hw.Submitted,
					})
				}
				return nil
			})
			if err != nil {
				slog.Error("拉取作业列表失败", "course", course.Name, "err", err)
				return
			}
			if len(local) == 0 {
				return
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
		}(course)
	}

	wg.Wait()
	return all
}
