package database

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// bucketName 是数据库中的“表名”
	bucketName = "Cookies"
	// jarKey 存放整个 cookie jar 的快照
	jarKey = "jar"
)

// DB 封装 BoltDB 实例，持久化会话 cookies
type DB struct {
	conn *bbolt.DB
}

// Open 初始化并打开数据库
func Open(dbPath string) (*DB, error) {
	// Timeout 选项防止两个进程同时打开同一个数据库导致死锁
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开 BoltDB 失败: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("创建 Bucket 失败: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	return d.conn.Close()
}

// LoadCookieJar 读取 cookie jar 快照，没有记录时返回 nil
func (d *DB) LoadCookieJar() ([]byte, error) {
	var data []byte
	err := d.conn.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(jarKey))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveCookieJar 写回 cookie jar 快照
func (d *DB) SaveCookieJar(data []byte) error {
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(jarKey), data)
	})
}

// ClearCookieJar 删除快照 (切换账号时调用，旧账号的 cookies 不能泄漏进新会话)
func (d *DB) ClearCookieJar() error {
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(jarKey))
	})
}
