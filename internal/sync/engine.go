package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"coursesync/internal/portal"
	"coursesync/internal/store"
)

// CourseService 引擎依赖的门户能力
type CourseService interface {
	FetchActivities(courseID uint64, courseName string) ([]portal.Activity, error)
	DownloadUpload(dir string, id uint64, name string, preferPDF bool) error
}

// EngineOptions 初始化选项
type EngineOptions struct {
	Service CourseService
	Store   *store.Store

	StorageDir string
	PreferPDF  bool
	SkipVideo  bool

	// 下载池宽度。课件下载吃带宽和磁盘，池子比发现阶段窄
	DownloadWorkers int
}

// Engine 课件发现-下载流水线
type Engine struct {
	opts *EngineOptions
}

// NewEngine 创建引擎
func NewEngine(opts *EngineOptions) *Engine {
	if opts.DownloadWorkers <= 0 {
		opts.DownloadWorkers = 4
	}
	return &Engine{opts: opts}
}

// Summary 一轮同步的结果汇总
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// NothingNew 本轮没有发现新课件
func (s Summary) NothingNew() bool {
	return s.Total == 0
}

// Run 执行一轮完整的课件同步：
// 发现新课件 -> 下载 -> 把成功的 id 并入去重账本并整批落盘一次。
// 账本在全部下载尘埃落定后才写，工具中途崩溃只会导致下次安全地重下在途项。
func (e *Engine) Run(ctx context.Context, selected []portal.SelectedCourse) (Summary, error) {
	record, err := e.opts.Store.LoadUploadRecord()
	if err != nil {
		return Summary{}, fmt.Errorf("加载已下载课件记录: %w", err)
	}

	tasks := e.BuildDownloadTasks(selected, record)
	if len(tasks) == 0 {
		slog.Info("没有新课件")
		return Summary{}, nil
	}
	slog.Info("更新课件信息完成", "新课件数", len(tasks))

	summary, succeeded := e.SyncDownloads(ctx, tasks)

	if len(succeeded) > 0 {
		record.Union(succeeded)
		if err := e.opts.Store.SaveUploadRecord(record); err != nil {
			return summary, fmt.Errorf("存储已下载课件记录: %w", err)
		}
	}

	slog.Info("拉取新课件结束",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

// BuildDownloadTasks 并发发现所有已选课程的新课件。
// 发现阶段全宽度并发：每门课一个 worker，课程数至多几十。
// 单课发现失败不致命，该课程本轮贡献为空；已在账本里的 id 和按设置
// 跳过的视频文件都不会进任务列表。
func (e *Engine) BuildDownloadTasks(selected []portal.SelectedCourse, record *store.UploadRecord) []DownloadTask {
	var (
		mu    sync.Mutex
		tasks []DownloadTask
		wg    sync.WaitGroup
	)

	for _, course := range selected {
		wg.Add(1)
		go func(course portal.SelectedCourse) {
			defer wg.Done()

			activities, err := e.opts.Service.FetchActivities(course.ID, course.Name)
			if err != nil {
				slog.Error("拉取课程活动失败", "course", course.Name, "err", err)
				return
			}

			var local []DownloadTask
			for _, activity := range activities {
				for _, upload := range activity.Uploads {
					if upload.ReferenceID == 0 || upload.Name == "" {
						continue
					}
					if record.Contains(upload.ReferenceID) {
						continue
					}
					if e.opts.SkipVideo && isVideoFile(upload.Name) {
						continue
					}
					local = append(local, DownloadTask{
						Semester:   course.Semester,
						CourseName: course.Name,
						UploadID:   upload.ReferenceID,
						FileName:   upload.Name,
					})
				}
			}
			if len(local) == 0 {
				return
			}
			mu.Lock()
			tasks = append(tasks, local...)
			mu.Unlock()
		}(course)
	}

	wg.Wait()
	return tasks
}

// SyncDownloads 在固定宽度的下载池里执行全部任务。
// 任务之间没有顺序保证；单项失败记日志后继续，不打断兄弟任务。
// 返回汇总和成功的 id 列表，落盘由调用方在整批结束后做。
func (e *Engine) SyncDownloads(ctx context.Context, tasks []DownloadTask) (Summary, []uint64) {
	taskChan := make(chan DownloadTask, len(tasks))
	for _, t := range tasks {
		taskChan <- t
	}
	close(taskChan)

	var (
		mu        sync.Mutex
		succeeded []uint64
		wg        sync.WaitGroup
	)

	for i := 0; i < e.opts.DownloadWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for task := range taskChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				dir := filepath.Join(e.opts.StorageDir, task.Semester, task.CourseName)
				if err := e.opts.Service.DownloadUpload(dir, task.UploadID, task.FileName, e.opts.PreferPDF); err != nil {
					slog.Error("[Worker] 下载失败",
						"worker", id,
						"file", task.FileName,
						"course", task.CourseName,
						"err", err,
					)
					continue
				}
				slog.Info("下载完成", "file", task.FileName, "course", task.CourseName)

				mu.Lock()
				succeeded = append(succeeded, task.UploadID)
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	return Summary{
		Total:     len(tasks),
		Succeeded: len(succeeded),
		Failed:    len(tasks) - len(succeeded),
	}, succeeded
}
