package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"coursesync/internal/database"
)

const (
	defaultLoginURL     = "https://zjuam.zju.edu.cn/cas/login"
	defaultPubkeyURL    = "https://zjuam.zju.edu.cn/cas/v2/getPubKey"
	defaultBaseURL      = "https://courses.zju.edu.cn"
	defaultGradeHomeURL = "http://appservice.zju.edu.cn/zdjw/cjcx/cjcxjg"
	defaultGradeURL     = "http://appservice.zju.edu.cn/zju-smartcampus/zdydjw/api/kkqk_cxXscjxx"

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:88.0) Gecko/20100101 Firefox/88.0"
)

// 登录页中隐藏的一次性 execution 令牌，按字面模式提取，不做完整 HTML 解析
var executionRe = regexp.MustCompile(`<input type="hidden" name="execution" value="(.*?)" />`)

// Options 初始化参数；URL 留空时使用线上门户地址
type Options struct {
	LoginURL     string
	PubkeyURL    string
	BaseURL      string // 课程门户
	GradeHomeURL string // 成绩服务主页 (会话独立过期)
	GradeURL     string

	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// CookieDB 为 nil 时 cookies 只存在内存中
	CookieDB *database.DB
}

// Session 一条到门户的已认证连接。
// cookie jar 是认证状态的唯一事实来源，其余组件不保存凭据。
type Session struct {
	opts   *Options
	client *http.Client
	jar    *Jar
}

type uaTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(req)
}

// NewSession 创建会话，尝试恢复上次持久化的 cookies。
// cookie 存档缺失或损坏时退回空 jar，不视为错误。
func NewSession(opts *Options) (*Session, error) {
	if opts.LoginURL == "" {
		opts.LoginURL = defaultLoginURL
	}
	if opts.PubkeyURL == "" {
		opts.PubkeyURL = defaultPubkeyURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.GradeHomeURL == "" {
		opts.GradeHomeURL = defaultGradeHomeURL
	}
	if opts.GradeURL == "" {
		opts.GradeURL = defaultGradeURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Minute // 大课件下载可能很慢
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	jar := NewJar()
	if opts.CookieDB != nil {
		data, err := opts.CookieDB.LoadCookieJar()
		if err != nil {
			slog.Warn("读取 cookie 存档失败，使用空 jar", "err", err)
		} else if len(data) > 0 {
			var entries []CookieEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				slog.Warn("cookie 存档无法解析，使用空 jar", "err", err)
			} else {
				jar.Restore(entries)
			}
		}
	}

	return &Session{
		opts: opts,
		jar:  jar,
		client: &http.Client{
			Jar:       jar,
			Timeout:   opts.Timeout,
			Transport: &uaTransport{base: http.DefaultTransport, ua: opts.UserAgent},
		},
	}, nil
}

// Close 在每条退出路径上把 cookie jar 写回持久存储。
// 写入失败只记录日志：丢失会话状态的代价不过是下次重新登录。
func (s *Session) Close() error {
	if s.opts.CookieDB == nil {
		return nil
	}
	data, err := json.Marshal(s.jar.Snapshot())
	if err == nil {
		err = s.opts.CookieDB.SaveCookieJar(data)
	}
	if err != nil {
		slog.Error("保存 cookies 失败", "err", err)
		return err
	}
	return nil
}

// EnsureLoggedIn 并发探测课程门户与成绩服务两个主页；
// 两边最终 URL 都没有重定向 query 时视为已登录，直接返回。
// 探测阶段的传输错误是致命的：不知道会话状态就无法继续。
func (s *Session) EnsureLoggedIn(account *Account) error {
	var courseQuery, gradeQuery string

	g := new(errgroup.Group)
	g.Go(func() error {
		q, err := s.probe(s.opts.BaseURL)
		if err != nil {
			return fmt.Errorf("连接课程门户主页: %w", err)
		}
		courseQuery = q
		return nil
	})
	g.Go(func() error {
		q, err := s.probe(s.opts.GradeHomeURL)
		if err != nil {
			return fmt.Errorf("连接成绩查询主页: %w", err)
		}
		gradeQuery = q
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if courseQuery == "" && gradeQuery == "" {
		return nil
	}
	return s.loginCore(account)
}

// probe 返回跟随重定向后最终 URL 的 query 部分
func (s *Session) probe(urlStr string) (string, error) {
	res, err := s.client.Get(urlStr)
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	return res.Request.URL.RawQuery, nil
}

// Relogin 清空 cookie jar 及其存档后强制走完整登录流程。
// 切换账号后必须调用：旧账号缓存的 cookies 绝不能带进新会话。
func (s *Session) Relogin(account *Account) error {
	s.jar.Clear()
	if s.opts.CookieDB != nil {
		if err := s.opts.CookieDB.ClearCookieJar(); err != nil {
			slog.Warn("清除 cookie 存档失败", "err", err)
		}
	}
	return s.loginCore(account)
}

// loginCore 完整登录协议，最多尝试 MaxRetries 次
func (s *Session) loginCore(account *Account) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		lastErr = s.loginOnce(account)
		if lastErr == nil {
			slog.Info("登录成功", "stuid", account.StuID)
			return nil
		}
		slog.Warn("登录失败", "attempt", attempt, "max", s.opts.MaxRetries, "err", lastErr)
	}
	return fmt.Errorf("登录失败，请检查学号-密码正确性及你的网络连接状态: %w", lastErr)
}

func (s *Session) loginOnce(account *Account) error {
	var execution, modulus, exponent string

	// 并发取登录页 execution 令牌与 RSA 公钥
	g := new(errgroup.Group)
	g.Go(func() error {
		res, err := s.client.Get(s.opts.LoginURL)
		if err != nil {
			return fmt.Errorf("连接登录页: %w", err)
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("读取登录页: %w", err)
		}
		m := executionRe.FindSubmatch(body)
		if m == nil {
			return errors.New("登录页中未找到 execution 令牌")
		}
		execution = string(m[1])
		return nil
	})
	g.Go(func() error {
		res, err := s.client.Get(s.opts.PubkeyURL)
		if err != nil {
			return fmt.Errorf("获取公钥: %w", err)
		}
		defer res.Body.Close()
		var key struct {
			Modulus  string `json:"modulus"`
			Exponent string `json:"exponent"`
		}
		if err := json.NewDecoder(res.Body).Decode(&key); err != nil {
			return fmt.Errorf("解析公钥: %w", err)
		}
		if key.Modulus == "" || key.Exponent == "" {
			return errors.New("公钥响应缺少 modulus/exponent")
		}
		modulus, exponent = key.Modulus, key.Exponent
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	ciphertext, err := rsaNoPadding(account.Password, modulus, exponent)
	if err != nil {
		return err
	}

	form := url.Values{
		"username":   {account.StuID},
		"password":   {ciphertext},
		"execution":  {execution},
		"_eventId":   {"submit"},
		"authcode":   {""},
		"rememberMe": {"true"},
	}
	res, err := s.client.PostForm(s.opts.LoginURL, form)
	if err != nil {
		return fmt.Errorf("提交登录: %w", err)
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()

	// 成功的判据：最终 URL 不再是登录页本身
	if res.Request.URL.String() == s.opts.LoginURL {
		return errors.New("登录被门户拒绝")
	}

	// 并发预热两个主页，换取各服务自己的会话 cookies
	warm := new(errgroup.Group)
	warm.Go(func() error {
		_, err := s.probe(s.opts.BaseURL)
		if err != nil {
			return fmt.Errorf("连接课程门户主页: %w", err)
		}
		return nil
	})
	warm.Go(func() error {
		_, err := s.probe(s.opts.GradeHomeURL)
		if err != nil {
			return fmt.Errorf("连接成绩查询主页: %w", err)
		}
		return nil
	})
	return warm.Wait()
}
