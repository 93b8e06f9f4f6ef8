package store

import "sort"

// UploadRecord 已下载课件 id 的去重账本。
// 只增不减：账本里的每个 id 都对应一份确认完整写入本地的文件。
type UploadRecord struct {
	ids map[uint64]struct{}
}

// NewUploadRecord 从持久化的 id 列表构建账本
func NewUploadRecord(ids []uint64) *UploadRecord {
	r := &UploadRecord{ids: make(map[uint64]struct{}, len(ids))}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

// Contains 判断 id 是否已下载过
func (r *UploadRecord) Contains(id uint64) bool {
	_, ok := r.ids[id]
	return ok
}

// Union 并入一批新完成的 id
func (r *UploadRecord) Union(ids []uint64) {
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
}

// Len 账本大小
func (r *UploadRecord) Len() int {
	return len(r.ids)
}

// IDs 升序导出，保证落盘内容稳定
func (r *UploadRecord) IDs() []uint64 {
	ids := make([]uint64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
