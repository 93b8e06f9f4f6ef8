package portal

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"
)

// CookieEntry cookie jar 快照中的一条记录
type CookieEntry struct {
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Secure  bool      `json:"secure,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// Jar 包装标准 cookiejar，额外维护一份可枚举的快照。
// 标准 jar 无法导出内容，而会话销毁时需要把 cookies 写回持久存储。
// 并发的 HTTP 交换会同时调用 SetCookies，快照由互斥锁保护。
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	entries map[string]CookieEntry
}

// NewJar 创建空 jar
func NewJar() *Jar {
	inner, _ := cookiejar.New(nil) // options 为 nil 时不会失败
	return &Jar{
		inner:   inner,
		entries: make(map[string]CookieEntry),
	}
}

// SetCookies 实现 http.CookieJar
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = u.Hostname()
		}
		cookiePath := c.Path
		if cookiePath == "" {
			cookiePath = "/"
		}
		key := domain + ";" + cookiePath + ";" + c.Name

		// MaxAge<0 或已过期表示删除
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = CookieEntry{
			Domain:  domain,
			Path:    cookiePath,
			Name:    c.Name,
			Value:   c.Value,
			Secure:  c.Secure,
			Expires: c.Expires,
		}
	}
	inner := j.inner
	j.mu.Unlock()

	// 标准 jar 自身是并发安全的，写快照之外不必持锁
	inner.SetCookies(u, cookies)
}

// Cookies 实现 http.CookieJar
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	inner := j.inner
	j.mu.Unlock()
	return inner.Cookies(u)
}

// Snapshot 导出当前全部未过期 cookies，按 key 排序保证落盘内容稳定
func (j *Jar) Snapshot() []CookieEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	keys := make([]string, 0, len(j.entries))
	for k := range j.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	entries := make([]CookieEntry, 0, len(keys))
	for _, k := range keys {
		e := j.entries[k]
		if !e.Expires.IsZero() && e.Expires.Before(now) {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// Restore 从快照恢复 cookies
func (j *Jar) Restore(entries []CookieEntry) {
	now := time.Now()
	for _, e := range entries {
		if e.Domain == "" || e.Name == "" {
			continue
		}
		if !e.Expires.IsZero() && e.Expires.Before(now) {
			continue
		}
		scheme := "http"
		if e.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: e.Domain, Path: e.Path}
		j.SetCookies(u, []*http.Cookie{{
			Name:    e.Name,
			Value:   e.Value,
			Path:    e.Path,
			Domain:  e.Domain,
			Secure:  e.Secure,
			Expires: e.Expires,
		}})
	}
}

// Clear 丢弃所有 cookies
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	inner, _ := cookiejar.New(nil)
	j.inner = inner
	j.entries = make(map[string]CookieEntry)
}
