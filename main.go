package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"coursesync/internal/config"
	"coursesync/internal/database"
	"coursesync/internal/grade"
	"coursesync/internal/portal"
	"coursesync/internal/store"
	syncer "coursesync/internal/sync"
	"coursesync/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("执行失败", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. 加载配置
	configPath := "config/config.yaml"
	if v := os.Getenv("COURSESYNC_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	// 2. 初始化日志系统
	if err := logger.Setup(cfg.System.LogLevel, cfg.System.LogFile); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}

	slog.Info("coursesync 启动中",
		"storage_dir", cfg.Settings.StorageDir,
		"data_dir", cfg.System.DataDir,
		"prefer_pdf", cfg.Settings.PreferPDF,
		"skip_video", cfg.Settings.SkipVideo,
	)

	// 3. 打开 cookie 数据库与本地记录
	db, err := database.Open(filepath.Join(cfg.System.DataDir, "cookies.db"))
	if err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer db.Close()

	st, err := store.New(cfg.System.DataDir)
	if err != nil {
		return fmt.Errorf("本地记录初始化失败: %w", err)
	}

	// 4. 建立会话并保证登录态
	session, err := portal.NewSession(&portal.Options{
		MaxRetries: cfg.Sync.MaxRetries,
		CookieDB:   db,
	})
	if err != nil {
		return fmt.Errorf("建立会话失败: %w", err)
	}
	// 无论成功失败，退出前都把 cookies 写回存档
	defer session.Close()

	account := &portal.Account{StuID: cfg.Account.StuID, Password: cfg.Account.Password}
	if err := session.EnsureLoggedIn(account); err != nil {
		return err
	}

	// 5. 保证课程目录存在
	catalog, err := st.LoadCatalog()
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		slog.Info("无 学期->课程 映射表，拉取课程目录")
		if err := refreshCatalog(session, st); err != nil {
			return err
		}
	}

	// 6. 优雅退出：信号取消只影响还没开始的任务
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := "fetch"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "fetch":
		return runFetch(ctx, cfg, session, st)
	case "refresh":
		return refreshCatalog(session, st)
	case "relogin":
		if err := session.Relogin(account); err != nil {
			return err
		}
		return refreshCatalog(session, st)
	case "homework":
		return runHomework(session, st)
	case "submit":
		return runSubmit(session, st, args[1:])
	case "grade":
		return runGrade(session, st, account)
	default:
		return fmt.Errorf("未知命令 %q (可用: fetch refresh relogin homework submit grade)", cmd)
	}
}

// refreshCatalog 并发拉取学期表与课程列表，派生活跃子集并全部落盘
func refreshCatalog(session *portal.Session, st *store.Store) error {
	var (
		semesterMap    map[uint64]string
		activeSemester string
		courses        []portal.Course
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		semesterMap, activeSemester, err = session.FetchSemesters()
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = session.FetchCourses()
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	catalog := portal.BuildCatalog(courses, semesterMap)

	semesters := make([]string, 0, len(catalog))
	for sem := range catalog {
		semesters = append(semesters, sem)
	}
	sort.Strings(semesters)

	activeSemesters := portal.FilterLatestGroup(semesters, activeSemester)
	activeCourses := portal.FilterActiveCourses(catalog, activeSemesters)

	if err := st.SaveCatalog(catalog); err != nil {
		return err
	}
	if err := st.SaveActiveSemesters(activeSemesters); err != nil {
		return err
	}
	if err := st.SaveActiveCourses(activeCourses); err != nil {
		return err
	}

	slog.Info("课程目录已更新",
		"semesters", len(catalog),
		"active_semesters", len(activeSemesters),
		"active_courses", len(activeCourses),
	)
	return nil
}

func runFetch(ctx context.Context, cfg *config.Config, session *portal.Session, st *store.Store) error {
	selected, err := st.LoadSelectedCourses()
	if err != nil {
		return err
	}
	// 没有显式选课时同步全部活跃课程
	if len(selected) == 0 {
		selected, err = selectedFromActive(st)
		if err != nil {
			return err
		}
		slog.Info("未选择课程，默认同步全部活跃课程", "courses", len(selected))
	}

	engine := syncer.NewEngine(&syncer.EngineOptions{
		Service:         session,
		Store:           st,
		StorageDir:      cfg.Settings.StorageDir,
		PreferPDF:       cfg.Settings.PreferPDF,
		SkipVideo:       cfg.Settings.SkipVideo,
		DownloadWorkers: cfg.Sync.DownloadWorkers,
	})

	summary, err := engine.Run(ctx, selected)
	if err != nil {
		return err
	}
	if summary.NothingNew() {
		fmt.Println("没有新课件")
		return nil
	}
	fmt.Printf("新课件 %d 个：成功 %d，失败 %d\n", summary.Total, summary.Succeeded, summary.Failed)
	return nil
}

// selectedFromActive 把活跃课程展开成带学期标签的同步选择
func selectedFromActive(st *store.Store) ([]portal.SelectedCourse, error) {
	activeSemesters, err := st.LoadActiveSemesters()
	if err != nil {
		return nil, err
	}
	catalog, err := st.LoadCatalog()
	if err != nil {
		return nil, err
	}

	var selected []portal.SelectedCourse
	for _, sem := range activeSemesters {
		for _, course := range catalog[sem] {
			selected = append(selected, portal.SelectedCourse{
				ID:       course.ID,
				Semester: sem,
				Name:     course.Name,
			})
		}
	}
	return selected, nil
}

func runHomework(session *portal.Session, st *store.Store) error {
	courses, err := st.LoadActiveCourses()
	if err != nil {
		return err
	}
	homeworks := session.FetchHomeworkList(courses)
	if len(homeworks) == 0 {
		fmt.Println("没有进行中的作业")
		return nil
	}
	for _, hw := range homeworks {
		status := "!"
		if hw.Submitted {
			status = "✓"
		}
		fmt.Printf("%s [%d] %s::%s\tddl: %s\n", status, hw.ID, hw.CourseName, hw.Title, hw.Deadline)
	}
	return nil
}

func runSubmit(session *portal.Session, st *store.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("用法: submit <作业id> <文件路径> [备注]")
	}
	homeworkID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("作业 id 无法解析: %w", err)
	}
	filePath := args[1]
	comment := ""
	if len(args) > 2 {
		comment = args[2]
	}

	courses, err := st.LoadActiveCourses()
	if err != nil {
		return err
	}

	// 文件上传与作业列表互不依赖，并发进行
	var (
		uploadID  uint64
		homeworks []portal.Homework
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		uploadID, err = session.UploadFile(filePath)
		return err
	})
	g.Go(func() error {
		homeworks = session.FetchHomeworkList(courses)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("上传文件到资料库完成", "upload_id", uploadID)

	known := false
	for _, hw := range homeworks {
		if hw.ID == homeworkID {
			known = true
			break
		}
	}
	if !known {
		slog.Warn("作业 id 不在进行中的作业列表里，仍尝试提交", "homework_id", homeworkID)
	}

	if err := session.HandIn(homeworkID, uploadID, comment); err != nil {
		return err
	}
	fmt.Println("上交作业完成")
	return nil
}

func runGrade(session *portal.Session, st *store.Store, account *portal.Account) error {
	records, err := session.QueryGrades(account.StuID)
	if err != nil {
		return err
	}
	activeSemesters, err := st.LoadActiveSemesters()
	if err != nil {
		return err
	}

	sum := grade.Aggregate(records, activeSemesters)
	fmt.Printf("学期均绩：%.2f/%.1f\n", sum.Semester.Average(), sum.Semester.CreditSum)
	fmt.Printf("学年均绩：%.2f/%.1f\n", sum.Year.Average(), sum.Year.CreditSum)
	fmt.Printf(" 总均绩 ：%.2f/%.1f\n", sum.Overall.Average(), sum.Overall.CreditSum)
	return nil
}
