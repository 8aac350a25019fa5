package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// ANSI-подсветка терминальных статусов execution в табличном режиме.
var statusColors = map[string]string{
	"RUNNING":   "\033[36m",
	"SUCCEEDED": "\033[32m",
	"FAILED":    "\033[31m",
	"CANCELLED": "\033[33m",
}

const colorReset = "\033[0m"

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	color    bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
// Подсветка статусов включается только при выводе в терминал
// и отключается переменной окружения NO_COLOR.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		color:    !jsonMode && os.Getenv("NO_COLOR") == "" && isTerminal(os.Stdout),
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(o.w, "(no results)")
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Status возвращает статус execution, подсвеченный для терминала.
// Без терминала (или в JSON-режиме) статус возвращается как есть.
func (o *Output) Status(s string) string {
	if !o.color {
		return s
	}
	c, ok := statusColors[s]
	if !ok {
		return s
	}
	return c + s + colorReset
}

// Successf выводит форматированное сообщение об успехе в stderr.
func (o *Output) Successf(format string, args ...any) {
	fmt.Fprintf(o.errW, format+"\n", args...)
}

// Errorf выводит форматированное сообщение об ошибке в stderr.
func (o *Output) Errorf(format string, args ...any) {
	fmt.Fprintf(o.errW, "Error: "+format+"\n", args...)
}
