// Package store — персистентность workflow и executions поверх
// PostgreSQL (pgx). Определения workflow и снимки executions хранятся
// как JSONB-документы.
package store
