package portal

// Account 门户账号凭据，由外部的凭据提供方传入
type Account struct {
	StuID    string
	Password string
}

// Course 课程目录中的一条原始记录
type Course struct {
	ID         uint64 `json:"id"`
	SemesterID uint64 `json:"semester_id"`
	Name       string `json:"name"`
}

// CourseData 去掉学期维度后的课程条目
type CourseData struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// SelectedCourse 用户选定要同步的课程，带学期标签
type SelectedCourse struct {
	ID       uint64 `json:"id"`
	Semester string `json:"semester"`
	Name     string `json:"name"`
}

// SemesterCourseMap 学期名 -> 课程列表
type SemesterCourseMap map[string][]CourseData

// UploadRef 活动携带的一个可下载课件引用
type UploadRef struct {
	ReferenceID uint64 `json:"reference_id"`
	Name        string `json:"name"`
}

// Activity 课程内容单元，可能携带零或多个课件
type Activity struct {
	Uploads []UploadRef `json:"uploads"`
}

// Homework 一条进行中的作业
type Homework struct {
	ID         uint64
	CourseName string
	Title      string
	Deadline   string
	Submitted  bool
}

// GradeRecord 一条成绩记录 (已从线上字段名转换)
type GradeRecord struct {
	Name   string  // kcmc 课程名
	Score  string  // cj 成绩
	Credit float64 // xf 学分
	Point  float64 // jd 绩点
	Year   string  // xn 学年
	Term   string  // xq 学期
}
