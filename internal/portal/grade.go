package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// errGradeListMissing 成绩响应缺少列表字段，多半是成绩服务会话单独过期了
var errGradeListMissing = errors.New("成绩响应缺少 data.list 字段")

// QueryGrades 查询原始成绩记录。
// 成绩服务的会话可能独立于课程门户过期：列表缺失时先探测主页是否仍在登录态，
// 仍在则重试一次，否则报错。
func (s *Session) QueryGrades(stuID string) ([]GradeRecord, error) {
	form := url.Values{"xh": {stuID}}

	records, err := s.postGrades(form)
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, errGradeListMissing) {
		return nil, err
	}

	query, probeErr := s.probe(s.opts.GradeHomeURL)
	if probeErr != nil {
		return nil, fmt.Errorf("连接成绩查询主页: %w", probeErr)
	}
	if query != "" {
		return nil, errors.New("成绩服务未登录，无法获取成绩")
	}
	records, err = s.postGrades(form)
	if err != nil {
		return nil, fmt.Errorf("无法获取成绩: %w", err)
	}
	return records, nil
}

func (s *Session) postGrades(form url.Values) ([]GradeRecord, error) {
	res, err := s.client.PostForm(s.opts.GradeURL, form)
	if err != nil {
		return nil, fmt.Errorf("查询成绩: %w", err)
	}
	defer res.Body.Close()

	var payload struct {
		Data struct {
			List *[]struct {
				Name   string  `json:"kcmc"`
				Score  string  `json:"cj"`
				Credit string  `json:"xf"`
				Point  float64 `json:"jd"`
				Year   string  `json:"xn"`
				Term   string  `json:"xq"`
			} `json:"list"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("解析成绩响应: %w", err)
	}
	if payload.Data.List == nil {
		return nil, errGradeListMissing
	}

	records := make([]GradeRecord, 0, len(*payload.Data.List))
	for _, raw := range *payload.Data.List {
		credit, err := strconv.ParseFloat(raw.Credit, 64)
		if err != nil {
			slog.Warn("学分无法解析，跳过该条成绩", "course", raw.Name, "credit", raw.Credit)
			continue
		}
		records = append(records, GradeRecord{
			Name:   raw.Name,
			Score:  raw.Score,
			Credit: credit,
			Point:  raw.Point,
			Year:   raw.Year,
			Term:   raw.Term,
		})
	}
	return records, nil
}
