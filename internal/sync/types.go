package sync

import (
	"path/filepath"
	"strings"
)

// DownloadTask 一个待下载的 (课程, 课件) 对，仅在单轮同步内存在
type DownloadTask struct {
	Semester   string
	CourseName string
	UploadID   uint64
	FileName   string
}

// 常见视频容器格式；skip_video 开启时按拓展名跳过
var videoExts = map[string]bool{
	".mp4": true,
	".avi": true,
	".mkv": true,
	".mov": true,
	".flv": true,
	".wmv": true,
}

func isVideoFile(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}
