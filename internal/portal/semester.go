package portal

import (
	"sort"
	"strings"
)

// SplitSemester 拆分 "2024-2025春夏" => ("2024-2025", "春夏")。
// 找不到任何已知后缀字符时整个字符串作为前缀，后缀为空。
func SplitSemester(semester string) (prefix, suffix string) {
	for i, r := range semester {
		if strings.ContainsRune("春夏秋冬短", r) {
			return semester[:i], semester[i:]
		}
	}
	return semester, ""
}

// suffixOrder 后缀的 (group, subpriority) 排序规则。
// group 大的组靠前，同组内 subpriority 大的靠前；
// 整学期后缀 (春夏/秋冬) 排在两个半学期之间，后半学期最高。
// 未知后缀落入最低优先级桶，不会挤掉任何已知分组。
func suffixOrder(suffix string) (group, sub int) {
	switch suffix {
	case "夏":
		return 2, 2
	case "春夏":
		return 2, 1
	case "春":
		return 2, 0
	case "冬":
		return 1, 2
	case "秋冬":
		return 1, 1
	case "秋":
		return 1, 0
	default: // "短" 与未知后缀
		return 0, 0
	}
}

// FilterLatestGroup 活跃窗口过滤器。
// 以门户上报的活跃学期为基准：保留年前缀相同且后缀同组的学期，
// 按 subpriority 降序排列。"当前课程" 的唯一定义，下游同步与成绩统计都依赖它。
func FilterLatestGroup(semesters []string, activeSemester string) []string {
	activePrefix, activeSuffix := SplitSemester(activeSemester)
	activeGroup, _ := suffixOrder(activeSuffix)

	type entry struct {
		name string
		sub  int
	}
	var kept []entry
	for _, sem := range semesters {
		prefix, suffix := SplitSemester(sem)
		if prefix != activePrefix {
			continue
		}
		group, sub := suffixOrder(suffix)
		if group != activeGroup {
			continue
		}
		kept = append(kept, entry{name: sem, sub: sub})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].sub > kept[j].sub })

	result := make([]string, 0, len(kept))
	for _, e := range kept {
		result = append(result, e.name)
	}
	return result
}

// FilterActiveCourses 展开活跃学期下的全部课程
func FilterActiveCourses(catalog SemesterCourseMap, activeSemesters []string) []CourseData {
	var courses []CourseData
	for _, sem := range activeSemesters {
		courses = append(courses, catalog[sem]...)
	}
	return courses
}
