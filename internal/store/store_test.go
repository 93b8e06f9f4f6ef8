package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursesync/internal/portal"
)

func TestNewInitializesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir)
	require.NoError(t, err)

	for _, name := range []string{
		"courses.json", "active_courses.json", "active_semesters.json",
		"selected_courses.json", "activity_upload_record.json",
	} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestNewKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "activity_upload_record.json"), []byte("[1,2]"), 0644))

	st, err := New(dir)
	require.NoError(t, err)

	record, err := st.LoadUploadRecord()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, record.IDs())
}

func TestCatalogRoundTrip(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	empty, err := st.LoadCatalog()
	require.NoError(t, err)
	assert.Empty(t, empty)

	catalog := portal.SemesterCourseMap{
		"2024-2025秋": {{ID: 1, Name: "高等数学"}},
	}
	require.NoError(t, st.SaveCatalog(catalog))

	got, err := st.LoadCatalog()
	require.NoError(t, err)
	assert.Equal(t, catalog, got)
}

func TestSelectedCoursesRoundTrip(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	selected := []portal.SelectedCourse{{ID: 7, Semester: "2024-2025秋", Name: "高等数学"}}
	require.NoError(t, st.SaveSelectedCourses(selected))

	got, err := st.LoadSelectedCourses()
	require.NoError(t, err)
	assert.Equal(t, selected, got)
}

func TestUploadRecordPersistence(t *testing.T) {
	dir := t.TempDir()
	st, err := New(dir)
	require.NoError(t, err)

	record, err := st.LoadUploadRecord()
	require.NoError(t, err)
	record.Union([]uint64{3, 1, 2})
	require.NoError(t, st.SaveUploadRecord(record))

	// 重新打开后账本内容不变，且升序稳定
	st2, err := New(dir)
	require.NoError(t, err)
	reloaded, err := st2.LoadUploadRecord()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, reloaded.IDs())
}

func TestUploadRecordMonotonic(t *testing.T) {
	record := NewUploadRecord([]uint64{1, 2})
	record.Union([]uint64{2, 3})

	assert.Equal(t, 3, record.Len())
	assert.True(t, record.Contains(1))
	assert.True(t, record.Contains(3))
	assert.False(t, record.Contains(4))
	assert.Equal(t, []uint64{1, 2, 3}, record.IDs())
}
