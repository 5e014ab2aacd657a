// Package migrations 内嵌审计日志表的建表脚本，供部署与巡检工具使用。
// 存储层自身会在启动时建表，这里的脚本面向需要提前审阅 DDL 的场景。
package migrations

import "embed"

// Files 暴露所有 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
