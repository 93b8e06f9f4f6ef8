package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config 对应 config.yaml 的根结构
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Settings SettingsConfig `yaml:"settings"`
	Sync     SyncConfig     `yaml:"sync"`
	System   SystemConfig   `yaml:"system"`
}

// AccountConfig 门户账号凭据
type AccountConfig struct {
	StuID    string `yaml:"stuid"`
	Password string `yaml:"password"`
}

// SettingsConfig 课件拉取偏好
type SettingsConfig struct {
	// 课件落盘根目录
	StorageDir string `yaml:"storage_dir"`
	// 可转换文档 (ppt 等) 是否以 PDF 格式下载
	PreferPDF bool `yaml:"prefer_pdf"`
	// 是否跳过视频文件
	SkipVideo bool `yaml:"skip_video"`
}

// SyncConfig 同步相关配置
// 池宽度是配置而非字面量，方便调优
type SyncConfig struct {
	DownloadWorkers int `yaml:"download_workers"`
	MaxRetries      int `yaml:"max_retries"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	// 持久化记录 (课程目录、去重账本、cookies) 所在目录
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// LoadConfig 读取并解析配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 格式错误: %w", err)
	}

	// 校验与默认值
	if cfg.Account.StuID == "" || cfg.Account.Password == "" {
		return nil, fmt.Errorf("缺少账号配置 (account.stuid / account.password)")
	}
	if cfg.Settings.StorageDir == "" {
		return nil, fmt.Errorf("缺少存储目录配置 (settings.storage_dir)")
	}
	if cfg.Sync.DownloadWorkers <= 0 {
		cfg.Sync.DownloadWorkers = 4
	}
	if cfg.Sync.MaxRetries <= 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.System.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("无法定位用户主目录: %w", err)
		}
		cfg.System.DataDir = filepath.Join(home, ".coursesync")
	}

	// 确保数据目录与存储目录存在
	if err := os.MkdirAll(cfg.System.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("无法创建数据目录: %w", err)
	}
	if err := os.MkdirAll(cfg.Settings.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("无法创建存储目录: %w", err)
	}

	return &cfg, nil
}
