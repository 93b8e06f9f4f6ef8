package portal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUploadFile(t *testing.T) {
	var putBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "report.pdf", payload["name"])
		assert.EqualValues(t, 9, payload["size"])
		fmt.Fprintf(w, `{"id":77,"name":"report.pdf","upload_url":"http://%s/put-slot"}`, r.Host)
	})
	mux.HandleFunc("/put-slot", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "report.pdf", header.Filename)
		buf, err := io.ReadAll(f)
		require.NoError(t, err)
		putBody = string(buf)
	})
	s := newCourseSession(t, mux)

	path := writeTempFile(t, "report.pdf", "pdf-bytes")
	id, err := s.UploadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), id)
	assert.Equal(t, "pdf-bytes", putBody)
}

func TestUploadFileUnsupportedTypeNoRetry(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"errors":{"name":["unsupported file type"]}}`)
	})
	s := newCourseSession(t, mux)

	path := writeTempFile(t, "weird.xyz", "data")
	_, err := s.UploadFile(path)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	// 终态错误立即上抛，不消耗重试
	assert.Equal(t, int64(1), calls.Load())
}

func TestUploadFilePutRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":77,"name":"a.pdf","upload_url":"http://%s/put-slot"}`, r.Host)
	})
	mux.HandleFunc("/put-slot", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})
	s := newCourseSession(t, mux)

	path := writeTempFile(t, "a.pdf", "data")
	_, err := s.UploadFile(path)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Contains(t, err.Error(), "403")
}

func TestHandIn(t *testing.T) {
	var payload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/course/activities/900/submissions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprint(w, `{"id":1}`)
	})
	s := newCourseSession(t, mux)

	require.NoError(t, s.HandIn(900, 77, "请查收"))

	assert.Equal(t, "<p>请查收<br></p>", payload["comment"])
	assert.Equal(t, false, payload["is_draft"])
	assert.Equal(t, "normal", payload["mode"])
	assert.Equal(t, []any{float64(77)}, payload["uploads"])
}

func TestHandInRejected(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/course/activities/900/submissions", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"errors":["deadline passed"]}`)
	})
	s := newCourseSession(t, mux)

	err := s.HandIn(900, 77, "")
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestFetchHomeworkList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses/1/homework-activities", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"homework_activities":[
			{"id":11,"title":"第一次作业","deadline":"2025-03-01","submitted":true,"is_in_progress":true},
			{"id":12,"title":"过期作业","deadline":"2025-01-01","submitted":false,"is_in_progress":false}
		]}`)
	})
	mux.HandleFunc("/api/courses/2/homework-activities", func(w http.ResponseWriter, r *http.Request) {
		// 单课失败不影响其它课程
		http.Error(w, "boom", http.StatusInternalServerError)
		fmt.Fprint(w, "not json")
	})
	s := newCourseSession(t, mux)

	homeworks := s.FetchHomeworkList([]CourseData{
		{ID: 1, Name: "高等数学"},
		{ID: 2, Name: "大学物理"},
	})

	require.Len(t, homeworks, 1)
	assert.Equal(t, Homework{
		ID:         11,
		CourseName: "高等数学",
		Title:      "第一次作业",
		Deadline:   "2025-03-01",
		Submitted:  true,
	}, homeworks[0])
}
