package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"coursesync/internal/portal"
)

// 各持久化记录的文件名，互相独立
const (
	fileCourses         = "courses.json"
	fileActiveCourses   = "active_courses.json"
	fileActiveSemesters = "active_semesters.json"
	fileSelectedCourses = "selected_courses.json"
	fileUploadRecord    = "activity_upload_record.json"
)

// Store 本地 JSON 记录的读写入口
type Store struct {
	dir string
}

// New 打开数据目录，缺失的记录文件以空内容初始化
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	s := &Store{dir: dir}

	inits := map[string]string{
		fileCourses:         "{}",
		fileActiveCourses:   "[]",
		fileActiveSemesters: "[]",
		fileSelectedCourses: "[]",
		fileUploadRecord:    "[]",
	}
	for name, content := range inits {
		path := s.path(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("初始化 %s 失败: %w", name, err)
			}
		}
	}
	return s, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) load(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", name, err)
	}
	return nil
}

func (s *Store) save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", name, err)
	}
	return nil
}

// LoadCatalog 加载 学期->课程 映射表
func (s *Store) LoadCatalog() (portal.SemesterCourseMap, error) {
	var catalog portal.SemesterCourseMap
	if err := s.load(fileCourses, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// SaveCatalog 存储 学期->课程 映射表
func (s *Store) SaveCatalog(catalog portal.SemesterCourseMap) error {
	return s.save(fileCourses, catalog)
}

// LoadActiveCourses 加载活跃课程列表
func (s *Store) LoadActiveCourses() ([]portal.CourseData, error) {
	var courses []portal.CourseData
	if err := s.load(fileActiveCourses, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// SaveActiveCourses 存储活跃课程列表
func (s *Store) SaveActiveCourses(courses []portal.CourseData) error {
	if courses == nil {
		courses = []portal.CourseData{}
	}
	return s.save(fileActiveCourses, courses)
}

// LoadActiveSemesters 加载活跃学期列表
func (s *Store) LoadActiveSemesters() ([]string, error) {
	var semesters []string
	if err := s.load(fileActiveSemesters, &semesters); err != nil {
		return nil, err
	}
	return semesters, nil
}

// SaveActiveSemesters 存储活跃学期列表
func (s *Store) SaveActiveSemesters(semesters []string) error {
	if semesters == nil {
		semesters = []string{}
	}
	return s.save(fileActiveSemesters, semesters)
}

// LoadSelectedCourses 加载已选课程
func (s *Store) LoadSelectedCourses() ([]portal.SelectedCourse, error) {
	var selected []portal.SelectedCourse
	if err := s.load(fileSelectedCourses, &selected); err != nil {
		return nil, err
	}
	return selected, nil
}

// SaveSelectedCourses 存储已选课程
func (s *Store) SaveSelectedCourses(selected []portal.SelectedCourse) error {
	if selected == nil {
		selected = []portal.SelectedCourse{}
	}
	return s.save(fileSelectedCourses, selected)
}

// LoadUploadRecord 加载已下载课件记录
func (s *Store) LoadUploadRecord() (*UploadRecord, error) {
	var ids []uint64
	if err := s.load(fileUploadRecord, &ids); err != nil {
		return nil, err
	}
	return NewUploadRecord(ids), nil
}

// SaveUploadRecord 存储已下载课件记录
func (s *Store) SaveUploadRecord(record *UploadRecord) error {
	return s.save(fileUploadRecord, record.IDs())
}
