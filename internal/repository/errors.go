package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	//ユニーク制約違反（受け取りコードの衝突、冪等キーの同時挿入など）
	ErrDuplicate = errors.New("duplicate")
)
