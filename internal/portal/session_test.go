package portal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursesync/internal/database"
)

// fakePortal 一套 CAS + 课程门户 + 成绩服务的假端点
type fakePortal struct {
	srv *httptest.Server

	loggedIn   atomic.Bool
	loginPosts atomic.Int64
	lastForm   url.Values
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	f := &fakePortal{}

	mux := http.NewServeMux()
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f.loginPosts.Add(1)
			require.NoError(t, r.ParseForm())
			f.lastForm = r.PostForm
			f.loggedIn.Store(true)
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><input type="hidden" name="execution" value="e1s1-token" /></html>`)
	})
	mux.HandleFunc("/cas/getPubKey", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"modulus":"10001","exponent":"1"}`)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	// 两个主页：未登录时重定向到带 query 的地址
	home := func(w http.ResponseWriter, r *http.Request) {
		if !f.loggedIn.Load() && r.URL.RawQuery == "" {
			http.Redirect(w, r, r.URL.Path+"?service=cas", http.StatusFound)
			return
		}
		fmt.Fprint(w, "ok")
	}
	mux.HandleFunc("/course", home)
	mux.HandleFunc("/grade-home", home)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePortal) options() *Options {
	return &Options{
		LoginURL:     f.srv.URL + "/cas/login",
		PubkeyURL:    f.srv.URL + "/cas/getPubKey",
		BaseURL:      f.srv.URL + "/course",
		GradeHomeURL: f.srv.URL + "/grade-home",
		GradeURL:     f.srv.URL + "/grade-api",
	}
}

func TestEnsureLoggedInSkipsWhenSessionValid(t *testing.T) {
	f := newFakePortal(t)
	f.loggedIn.Store(true)

	s, err := NewSession(f.options())
	require.NoError(t, err)

	err = s.EnsureLoggedIn(&Account{StuID: "3210100000", Password: "A"})
	require.NoError(t, err)
	// 会话仍有效时不应提交任何登录表单
	assert.Equal(t, int64(0), f.loginPosts.Load())
}

func TestEnsureLoggedInRunsFullLogin(t *testing.T) {
	f := newFakePortal(t)

	s, err := NewSession(f.options())
	require.NoError(t, err)

	err = s.EnsureLoggedIn(&Account{StuID: "3210100000", Password: "A"})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.loginPosts.Load())

	// 表单各字段与协议一致；modulus=0x10001 exponent=1 下 "A" 加密为 "41"
	assert.Equal(t, "3210100000", f.lastForm.Get("username"))
	assert.Equal(t, "41", f.lastForm.Get("password"))
	assert.Equal(t, "e1s1-token", f.lastForm.Get("execution"))
	assert.Equal(t, "submit", f.lastForm.Get("_eventId"))
	assert.Equal(t, "true", f.lastForm.Get("rememberMe"))
}

func TestLoginRetriesThenFails(t *testing.T) {
	f := newFakePortal(t)
	opts := f.options()
	opts.MaxRetries = 2

	// POST 后停在登录页本身即视为拒绝
	mux := http.NewServeMux()
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f.loginPosts.Add(1)
			fmt.Fprint(w, "wrong password")
			return
		}
		fmt.Fprint(w, `<input type="hidden" name="execution" value="tok" />`)
	})
	mux.HandleFunc("/cas/getPubKey", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"modulus":"10001","exponent":"1"}`)
	})
	rejecting := httptest.NewServer(mux)
	defer rejecting.Close()
	opts.LoginURL = rejecting.URL + "/cas/login"
	opts.PubkeyURL = rejecting.URL + "/cas/getPubKey"

	s, err := NewSession(opts)
	require.NoError(t, err)

	err = s.loginCore(&Account{StuID: "3210100000", Password: "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "登录失败")
	assert.Equal(t, int64(2), f.loginPosts.Load())
}

func TestReloginClearsOldCookies(t *testing.T) {
	f := newFakePortal(t)

	s, err := NewSession(f.options())
	require.NoError(t, err)

	u, _ := url.Parse(f.srv.URL)
	s.jar.SetCookies(u, []*http.Cookie{{Name: "stale", Value: "old-account", Path: "/"}})
	require.Len(t, s.jar.Snapshot(), 1)

	require.NoError(t, s.Relogin(&Account{StuID: "3210100001", Password: "A"}))

	for _, e := range s.jar.Snapshot() {
		assert.NotEqual(t, "stale", e.Name)
	}
	assert.Equal(t, int64(1), f.loginPosts.Load())
}

func TestSessionPersistsCookiesAcrossRuns(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "cookies.db"))
	require.NoError(t, err)
	defer db.Close()

	f := newFakePortal(t)
	opts := f.options()
	opts.CookieDB = db

	s1, err := NewSession(opts)
	require.NoError(t, err)
	u, _ := url.Parse(f.srv.URL)
	s1.jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "persist-me", Path: "/"}})
	require.NoError(t, s1.Close())

	opts2 := f.options()
	opts2.CookieDB = db
	s2, err := NewSession(opts2)
	require.NoError(t, err)

	snap := s2.jar.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "session", snap[0].Name)
	assert.Equal(t, "persist-me", snap[0].Value)
}

func TestNewSessionToleratesCorruptCookieArchive(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "cookies.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SaveCookieJar([]byte("not-json{")))

	f := newFakePortal(t)
	opts := f.options()
	opts.CookieDB = db

	s, err := NewSession(opts)
	require.NoError(t, err)
	assert.Empty(t, s.jar.Snapshot())
}
