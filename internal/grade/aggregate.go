package grade

import (
	"coursesync/internal/portal"
)

// withdrawnScore 弃修课程不计入任何均绩口径
const withdrawnScore = "弃修"

// Bucket 一个统计口径下的学分加权累加器
type Bucket struct {
	WeightSum float64 // Σ 绩点×学分
	CreditSum float64 // Σ 学分
}

func (b *Bucket) add(point, credit float64) {
	b.WeightSum += point * credit
	b.CreditSum += credit
}

// Average 加权均绩；口径为空时返回 0 而非 NaN
func (b Bucket) Average() float64 {
	if b.CreditSum == 0 {
		return 0
	}
	return b.WeightSum / b.CreditSum
}

// Summary 各口径的均绩汇总
type Summary struct {
	Overall  Bucket // 全程
	Year     Bucket // 本学年
	Semester Bucket // 本学期

	// 学分规模分组，仅用于展示
	Large  Bucket // 学分 >= 3.5
	Medium Bucket // 2.0 <= 学分 < 3.5
	Small  Bucket
}

// Aggregate 按活跃学期集合计算学分加权均绩。
// activeSemesters 即目录同步落盘的活跃学期列表，决定 "本学年/本学期" 的口径。
func Aggregate(records []portal.GradeRecord, activeSemesters []string) Summary {
	yearSet := make(map[string]bool)
	termSet := make(map[string]bool)
	for _, sem := range activeSemesters {
		prefix, suffix := portal.SplitSemester(sem)
		yearSet[prefix] = true
		termSet[suffix] = true
	}

	var sum Summary
	for _, r := range records {
		if r.Score == withdrawnScore {
			continue
		}

		sum.Overall.add(r.Point, r.Credit)
		if yearSet[r.Year] {
			sum.Year.add(r.Point, r.Credit)
			if termSet[r.Term] {
				sum.Semester.add(r.Point, r.Credit)
			}
		}

		switch {
		case r.Credit >= 3.5:
			sum.Large.add(r.Point, r.Credit)
		case r.Credit >= 2.0:
			sum.Medium.add(r.Point, r.Credit)
		default:
			sum.Small.add(r.Point, r.Credit)
		}
	}
	return sum
}
