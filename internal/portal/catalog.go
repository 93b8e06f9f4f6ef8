package portal

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// 固定过滤条件：只取进行中与未开始的课程，page_size 足够大以一页取完
const courseConditions = `{"status":["ongoing","notStarted"],"keyword":"","classify_type":"recently_started","display_studio_list":false}`

// FetchSemesters 拉取学期映射表，并记录门户标记的当前活跃学期名
func (s *Session) FetchSemesters() (map[uint64]string, string, error) {
	res, err := s.client.Get(s.opts.BaseURL + "/api/my-semesters?")
	if err != nil {
		return nil, "", fmt.Errorf("获取学期映射表: %w", err)
	}
	defer res.Body.Close()

	var payload struct {
		Semesters []struct {
			ID       uint64 `json:"id"`
			Name     string `json:"name"`
			IsActive bool   `json:"is_active"`
		} `json:"semesters"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("解析学期映射表: %w", err)
	}

	semesterMap := make(map[uint64]string, len(payload.Semesters))
	var active string
	for _, sem := range payload.Semesters {
		semesterMap[sem.ID] = sem.Name
		if sem.IsActive {
			active = sem.Name
		}
	}
	return semesterMap, active, nil
}

// FetchCourses 拉取课程列表
func (s *Session) FetchCourses() ([]Course, error) {
	q := url.Values{}
	q.Set("conditions", courseConditions)
	q.Set("fields", "id,name,semester_id")
	q.Set("page", "1")
	q.Set("page_size", "1000")

	res, err := s.client.Get(s.opts.BaseURL + "/api/my-courses?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("获取课程列表: %w", err)
	}
	defer res.Body.Close()

	var payload struct {
		Courses []Course `json:"courses"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("解析课程列表: %w", err)
	}
	return payload.Courses, nil
}

// BuildCatalog 纯分组：按学期 id 找到学期名，归并为 学期名 -> 课程列表。
// 学期映射表里找不到的课程直接丢弃。
func BuildCatalog(courses []Course, semesterMap map[uint64]string) SemesterCourseMap {
	catalog := make(SemesterCourseMap)
	for _, course := range courses {
		name, ok := semesterMap[course.SemesterID]
		if !ok {
			continue
		}
		catalog[name] = append(catalog[name], CourseData{ID: course.ID, Name: course.Name})
	}
	return catalog
}
